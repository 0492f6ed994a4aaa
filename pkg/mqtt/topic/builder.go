package topic

import (
	"strings"
)

// Topic segments shared by the agent and whatever publishes vehicle signals.
// Changing these values breaks compatibility with existing publishers.
const (
	// SegmentProperty carries single property change events (Vehicle -> Agent).
	// Structure: {root}/vehicle/property/{vehicleID}
	SegmentProperty = "vehicle/property"

	// SegmentLocation carries the latest buffered location fixes (Vehicle -> Agent).
	// Structure: {root}/vehicle/location/{vehicleID}
	SegmentLocation = "vehicle/location"

	// SegmentSessionState mirrors the composed session state, retained (Agent -> Display).
	// Structure: {root}/session/state/{vehicleID}
	SegmentSessionState = "session/state"

	// SegmentUploadStatus mirrors the latest upload outcome, retained (Agent -> Display).
	// Structure: {root}/upload/status/{vehicleID}
	SegmentUploadStatus = "upload/status"

	// SegmentPresence carries the online/offline last-will marker (Agent -> Display).
	// Structure: {root}/presence/{vehicleID}
	SegmentPresence = "presence"
)

// Wildcard is the MQTT single-level wildcard; in a vehicle position it
// matches every vehicle.
const Wildcard = "+"

// TopicBuilder constructs topic strings under one root namespace.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "cartrack/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimSuffix(root, "/")}
}

// Root returns the namespace every topic is built under.
func (b *TopicBuilder) Root() string {
	return b.root
}

func (b *TopicBuilder) Property(vehicleID string) string {
	return b.Build(SegmentProperty, vehicleID)
}

func (b *TopicBuilder) Location(vehicleID string) string {
	return b.Build(SegmentLocation, vehicleID)
}

func (b *TopicBuilder) SessionState(vehicleID string) string {
	return b.Build(SegmentSessionState, vehicleID)
}

func (b *TopicBuilder) UploadStatus(vehicleID string) string {
	return b.Build(SegmentUploadStatus, vehicleID)
}

func (b *TopicBuilder) Presence(vehicleID string) string {
	return b.Build(SegmentPresence, vehicleID)
}

// Wildcard returns the filter matching a segment for every vehicle.
// Result: {root}/{segment}/+
func (b *TopicBuilder) Wildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Build joins root, segment and identifier.
// Pattern: {root}/{segment}/{identifier}
func (b *TopicBuilder) Build(segment, id string) string {
	return b.root + "/" + segment + "/" + id
}

// VehicleID extracts the trailing identifier of a topic built under segment.
// It returns false when the topic does not belong to the segment.
func (b *TopicBuilder) VehicleID(segment, topic string) (string, bool) {
	prefix := b.root + "/" + segment + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
