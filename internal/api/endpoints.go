package api

import (
	"context"
)

const (
	PathConf      = "/cars/conf"
	PathMe        = "/users/me"
	PathLocations = "/cars/locations"
)

// Conf fetches the remote configuration and language packs.
func (c *Client) Conf(ctx context.Context) (*Conf, error) {
	conf, err := Get[Conf](ctx, c, PathConf, "")
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

// Me fetches the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	user, err := Get[User](ctx, c, PathMe, "")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PostLocations uploads one batch. carToken authorizes writes for the car.
func (c *Client) PostLocations(ctx context.Context, carToken string, update *LocationUpdate) (*Ack, error) {
	ack, err := Post[Ack](ctx, c, PathLocations, carToken, update)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}
