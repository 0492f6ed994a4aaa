package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotReady = errors.New("not ready")

func newMachine(ready *bool) *fsm.FSM {
	return fsm.NewFSM(
		"idle",
		fsm.Events{
			{Name: "start", Src: []string{"idle", "running"}, Dst: "running"},
			{Name: "stop", Src: []string{"running"}, Dst: "idle"},
		},
		fsm.Callbacks{
			"before_start": WrapEvent(func(context.Context, *fsm.Event) error {
				if !*ready {
					return errNotReady
				}
				return nil
			}),
		},
	)
}

func TestWrapEventCancelsTransition(t *testing.T) {
	ready := false
	m := newMachine(&ready)

	err := Fire(context.Background(), m, "start")
	var canceled fsm.CanceledError
	require.True(t, errors.As(err, &canceled))
	assert.ErrorIs(t, canceled.Err, errNotReady)
	assert.Equal(t, "idle", m.Current())

	ready = true
	require.NoError(t, Fire(context.Background(), m, "start"))
	assert.Equal(t, "running", m.Current())
}

func TestFireIgnoresSelfTransition(t *testing.T) {
	ready := true
	m := newMachine(&ready)
	require.NoError(t, Fire(context.Background(), m, "start"))

	assert.NoError(t, Fire(context.Background(), m, "start"))
	assert.Equal(t, "running", m.Current())

	require.NoError(t, Fire(context.Background(), m, "stop"))
	assert.Error(t, Fire(context.Background(), m, "stop"))
}
