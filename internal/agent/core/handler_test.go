package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Seq int `json:"seq"`
}

func TestJSONAdapter(t *testing.T) {
	var got ping
	h := JSONAdapter(func(_ context.Context, msg ping) error {
		got = msg
		return nil
	})

	require.NoError(t, h(context.Background(), []byte(`{"seq":7}`)))
	assert.Equal(t, 7, got.Seq)

	assert.Error(t, h(context.Background(), []byte(`{"seq":`)))
}

type recordingSender struct {
	event   EventType
	payload string
	err     error
}

func (r *recordingSender) Send(_ context.Context, event EventType, payload []byte) error {
	r.event, r.payload = event, string(payload)
	return r.err
}

func TestSendJSON(t *testing.T) {
	s := &recordingSender{}
	require.NoError(t, SendJSON(context.Background(), s, EventPresence, Presence{VehicleID: "v1", Online: true}))
	assert.Equal(t, EventPresence, s.event)
	assert.JSONEq(t, `{"vehicleId":"v1","online":true}`, s.payload)

	s.err = errors.New("offline")
	assert.Error(t, SendJSON(context.Background(), s, EventPresence, Presence{}))
	assert.Error(t, SendJSON(context.Background(), s, EventPresence, make(chan int)))
}
