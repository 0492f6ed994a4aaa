package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestSourceFoldsProperties(t *testing.T) {
	clk := testingclock.NewFakeClock(time.UnixMilli(5000))
	src := NewSource(clk)

	require.NoError(t, src.ApplyProperty(PropertyEvent{Property: PropertySpeed, Value: 12.0}))
	require.Error(t, src.ApplyProperty(PropertyEvent{Property: "unknown", Value: 1.0}))

	r := src.Reading()
	require.NotNil(t, r.Speed)
	assert.Equal(t, 12.0, *r.Speed)
	assert.EqualValues(t, 5000, r.Timestamp)
}

func TestSourceReplacesLocationBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewSource(testingclock.NewFakeClock(time.Unix(0, 0)))
	_, ok := src.LatestBatch()
	assert.False(t, ok)

	src.ReplaceLocations([]LocationFix{{Latitude: 1, Longitude: 2, Timestamp: 1}})
	b2 := src.ReplaceLocations([]LocationFix{{Latitude: 3, Longitude: 4, Timestamp: 2}})

	ch := src.Locations(ctx)
	select {
	case got := <-ch:
		assert.Equal(t, b2, got)
		assert.EqualValues(t, 2, got.Seq)
		require.Len(t, got.Fixes, 1)
		assert.Equal(t, 3.0, got.Fixes[0].Latitude)
	case <-time.After(time.Second):
		t.Fatal("no batch replayed")
	}
}
