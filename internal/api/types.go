package api

import (
	"github.com/autopeer-io/cartrack/internal/telemetry"
)

// Conf is the remote configuration bundle served by GET /cars/conf.
type Conf struct {
	DefaultLanguage string         `json:"defaultLanguage,omitempty"`
	Languages       []LanguagePack `json:"languages"`
}

// LanguagePack holds the UI strings of one language.
type LanguagePack struct {
	Code    string            `json:"code"`
	Name    string            `json:"name,omitempty"`
	Strings map[string]string `json:"strings,omitempty"`
}

// Find returns the pack with the given code.
func (c *Conf) Find(code string) (*LanguagePack, bool) {
	if c == nil || code == "" {
		return nil, false
	}
	for i := range c.Languages {
		if c.Languages[i].Code == code {
			return &c.Languages[i], true
		}
	}
	return nil, false
}

// User is the signed-in profile served by GET /users/me.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Cars  []Car  `json:"cars"`
}

// Car is a registered vehicle. Token is the capability token sent as
// X-Token when uploading the car's locations.
type Car struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Token string `json:"token,omitempty"`
}

// LocationUpdate is the body of POST /cars/locations.
type LocationUpdate struct {
	Updates []telemetry.LocationFix `json:"updates"`
	CarID   string                  `json:"carId"`
	Car     telemetry.Reading       `json:"car"`
}

// Ack acknowledges an accepted upload.
type Ack struct {
	Message string `json:"message"`
}
