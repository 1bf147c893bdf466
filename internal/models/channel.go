package models

import "strings"

// Supported sensor types. PT100 is a 4-wire resistance sensor; the TC_*
// entries are thermocouple types per IEC 60584.
const (
	SensorPT100 = "PT100"
	SensorTCK   = "TC_K"
	SensorTCS   = "TC_S"
	SensorTCJ   = "TC_J"
	SensorTCT   = "TC_T"
	SensorTCN   = "TC_N"
	SensorTCR   = "TC_R"
	SensorTCB   = "TC_B"
)

// IsThermocouple reports whether the sensor type is a thermocouple.
func IsThermocouple(sensorType string) bool {
	return strings.HasPrefix(sensorType, "TC_")
}

// ThermocoupleType extracts the single-letter thermocouple type ("K", "S", ...)
// from a TC_* sensor type. Returns "K" for malformed input.
func ThermocoupleType(sensorType string) string {
	if _, t, ok := strings.Cut(sensorType, "_"); ok && t != "" {
		return strings.ToUpper(t)
	}
	return "K"
}

// Channel identifies a multimeter scanner slot, e.g. "A0" or "B2".
// The scanner letter selects the card, the digit selects the slot.
type Channel struct {
	Name       string `json:"name"`
	SensorType string `json:"sensor_type"`
	Reference  bool   `json:"reference"`
}

// CalibrationPoint is one target temperature in a run. Points are sorted
// ascending before the run starts and never change while it is running.
type CalibrationPoint struct {
	Index  int     `json:"index"`
	Target float64 `json:"target_c"`
}
