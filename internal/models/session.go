package models

import "time"

// SessionInfo is the operator-supplied metadata recorded when a calibration
// session is opened.
type SessionInfo struct {
	Operator    string   `json:"operator"`
	Client      string   `json:"client,omitempty"`
	OrderNumber string   `json:"order_number,omitempty"`
	AmbientC    *float64 `json:"ambient_temperature,omitempty"`
	HumidityPct *float64 `json:"relative_humidity,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Session is a persisted calibration session row.
type Session struct {
	ID        int64      `json:"session_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	SessionInfo
}

// EngineState names the orchestrator's lifecycle states.
type EngineState string

const (
	StateIdle      EngineState = "idle"
	StateRunning   EngineState = "running"
	StatePaused    EngineState = "paused"
	StateStopping  EngineState = "stopping"
	StateCompleted EngineState = "completed"
	StateFailed    EngineState = "failed"
)

// StatusSnapshot is the advisory telemetry view of a run. Consumers must
// tolerate stale values: only the engine worker writes calibration state.
type StatusSnapshot struct {
	State          EngineState        `json:"state"`
	SessionID      int64              `json:"session_id,omitempty"`
	CurrentPoint   int                `json:"current_point"` // 1-based; 0 before the first point
	TotalPoints    int                `json:"total_points"`
	CurrentTarget  float64            `json:"current_target"`
	FurnacePV      *float64           `json:"furnace_pv,omitempty"`
	FurnaceSP      *float64           `json:"furnace_sp,omitempty"`
	CurrentChannel string             `json:"current_channel,omitempty"`
	LastValues     map[string]float64 `json:"last_values,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// TracePoint is one timestamped value in a display history buffer.
type TracePoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// PlotData is a snapshot of the live-display ring buffers. Purely a display
// aid; persisted measurements are the system of record.
type PlotData struct {
	Channels map[string][]TracePoint `json:"channels"`
	Furnace  []TracePoint            `json:"furnace"`
}
