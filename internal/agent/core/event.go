package core

// EventType names a message exchanged over the vehicle bus.
type EventType string

const (
	// Inbound: vehicle signals folded into telemetry.
	EventProperty EventType = "vehicle.property"
	EventLocation EventType = "vehicle.location"

	// Outbound: state mirrored to display collaborators.
	EventSessionState EventType = "session.state"
	EventUploadStatus EventType = "upload.status"
	EventPresence     EventType = "agent.presence"
)

// Presence is published retained on connect and as the last will.
type Presence struct {
	VehicleID string `json:"vehicleId"`
	Online    bool   `json:"online"`
	Reason    string `json:"reason,omitempty"`
}
