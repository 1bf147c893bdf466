package models

import "time"

// Event types published on the engine's telemetry stream.
const (
	EventMeasurement      = "MEASUREMENT"
	EventChannelChanged   = "CHANNEL_CHANGED"
	EventStability        = "STABILITY"
	EventPointCompleted   = "POINT_COMPLETED"
	EventRunCompleted     = "CALIBRATION_COMPLETED"
	EventError            = "ERROR"
	EventStatus           = "STATUS"
)

// Event is a single telemetry message. Payload carries one of the typed
// payload structs below depending on Type.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// MeasurementEvent accompanies EventMeasurement.
type MeasurementEvent struct {
	Channel   string  `json:"channel"`
	Measured  float64 `json:"measured"`
	Reference float64 `json:"reference"`
}

// StabilityEvent accompanies EventStability.
type StabilityEvent struct {
	Stable  bool   `json:"stable"`
	Message string `json:"message"`
}

// PointCompletedEvent accompanies EventPointCompleted.
type PointCompletedEvent struct {
	Index   int                    `json:"index"`
	Target  float64                `json:"target_c"`
	Results map[string]PointResult `json:"results"`
}
