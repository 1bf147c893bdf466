package models

import "time"

// Measurement is a single raw sample taken during a point's measurement
// burst. Append-only; never rewritten after the fact.
type Measurement struct {
	Channel       string    `json:"channel"`
	ChannelIndex  int       `json:"channel_index"`
	Timestamp     time.Time `json:"timestamp"`
	MeasuredTempC float64   `json:"measured_temp_c"`
	ReferenceC    float64   `json:"reference_temp_c"`
	FurnacePV     float64   `json:"furnace_pv"`
	FurnaceSP     float64   `json:"furnace_sp"`
	RawValue      float64   `json:"raw_value"` // uncorrected resistance (Ω) or EMF (mV)
	AbsoluteError float64   `json:"absolute_error"`
	PointTarget   float64   `json:"calibration_point"`
}

// PointResult is the per-channel aggregate for one calibration point.
// Derived when the point completes, immutable afterwards. A channel with
// zero successful samples at a point gets no PointResult at all.
type PointResult struct {
	Channel          string  `json:"channel"`
	PointTarget      float64 `json:"point_temperature"`
	N                int     `json:"n_measurements"`
	AvgMeasured      float64 `json:"avg_measured_temp"`
	AvgReference     float64 `json:"avg_reference_temp"`
	StdDev           float64 `json:"std_dev"`
	Error            float64 `json:"error"`
	MaxAbsoluteError float64 `json:"max_absolute_error"`
	TypeA            float64 `json:"type_a_uncertainty"`
	TypeB            float64 `json:"type_b_uncertainty"`
	Combined         float64 `json:"standard_uncertainty"`
	Expanded         float64 `json:"expanded_uncertainty"`
	SensorClass      string  `json:"sensor_class"`
	Compliant        bool    `json:"is_compliant"`
}

// ChannelSummary condenses a channel's results across all completed points.
type ChannelSummary struct {
	Channel    string    `json:"channel"`
	Points     int       `json:"n_points"`
	Targets    []float64 `json:"temperatures"`
	MeanError  float64   `json:"mean_error"`
	MaxError   float64   `json:"max_error"`
	MeanStdDev float64   `json:"mean_std"`
}

// SessionReport is the full per-session aggregate emitted on completion.
type SessionReport struct {
	Channels map[string][]PointResult  `json:"channels"`
	Summary  map[string]ChannelSummary `json:"summary"`
}
