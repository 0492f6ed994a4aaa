package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewTopicBuilder("cartrack/v1/")

	assert.Equal(t, "cartrack/v1", b.Root())
	assert.Equal(t, "cartrack/v1/vehicle/property/car-1", b.Property("car-1"))
	assert.Equal(t, "cartrack/v1/vehicle/location/car-1", b.Location("car-1"))
	assert.Equal(t, "cartrack/v1/session/state/car-1", b.SessionState("car-1"))
	assert.Equal(t, "cartrack/v1/upload/status/car-1", b.UploadStatus("car-1"))
	assert.Equal(t, "cartrack/v1/presence/car-1", b.Presence("car-1"))
	assert.Equal(t, "cartrack/v1/vehicle/property/+", b.Wildcard(SegmentProperty))
}

func TestVehicleID(t *testing.T) {
	b := NewTopicBuilder("cartrack/v1")

	id, ok := b.VehicleID(SegmentLocation, "cartrack/v1/vehicle/location/car-9")
	assert.True(t, ok)
	assert.Equal(t, "car-9", id)

	_, ok = b.VehicleID(SegmentLocation, "cartrack/v1/vehicle/property/car-9")
	assert.False(t, ok)

	_, ok = b.VehicleID(SegmentLocation, "cartrack/v1/vehicle/location/car-9/x")
	assert.False(t, ok)
}
