package calibration

import (
	"math"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// OutOfClass is reported when the error exceeds every tolerance band of the
// sensor's table.
const OutOfClass = "out of class"

// toleranceClass pairs a class name with its tolerance band at a
// temperature. Tables are ordered tightest first; the first satisfied class
// wins.
type toleranceClass struct {
	name  string
	limit func(t float64) float64
}

// IEC 60751 resistance-sensor classes: base + slope·|t|.
var pt100Classes = []toleranceClass{
	{"AA", additiveTolerance(0.1, 0.0017)},
	{"A", additiveTolerance(0.15, 0.002)},
	{"B", additiveTolerance(0.3, 0.005)},
	{"C", additiveTolerance(0.6, 0.01)},
}

// IEC 60584 type K thermocouple classes: a floor with a slope term at high
// temperatures. Types without an explicit table fall back to these bands.
var thermocoupleGeneric = []toleranceClass{
	{"class 1", flooredTolerance(1.5, 0.004)},
	{"class 2", flooredTolerance(2.5, 0.0075)},
}

func additiveTolerance(base, slope float64) func(float64) float64 {
	return func(t float64) float64 { return base + slope*math.Abs(t) }
}

func flooredTolerance(floor, slope float64) func(float64) float64 {
	return func(t float64) float64 { return math.Max(floor, slope*math.Abs(t)) }
}

// Type S class 1: flat 1.0 °C up to 1100 °C, then a slope term.
func typeSClass1(t float64) float64 {
	if t > 1100 {
		return math.Max(1.0, 0.003*(t-1100))
	}
	return 1.0
}

var typeSClasses = []toleranceClass{
	{"class 1", typeSClass1},
	{"class 2", func(t float64) float64 { return typeSClass1(t) * 1.5 }},
}

func classify(sensorType string, absError, temperature float64) string {
	for _, c := range classTable(sensorType) {
		if absError <= c.limit(temperature) {
			return c.name
		}
	}
	return OutOfClass
}

func classTable(sensorType string) []toleranceClass {
	if !models.IsThermocouple(sensorType) {
		return pt100Classes
	}
	if models.ThermocoupleType(sensorType) == "S" {
		return typeSClasses
	}
	return thermocoupleGeneric
}

// Tolerance returns the band width of a named class at a temperature, or
// +Inf for an unknown class name.
func Tolerance(sensorType, class string, temperature float64) float64 {
	for _, c := range classTable(sensorType) {
		if c.name == class {
			return c.limit(temperature)
		}
	}
	return math.Inf(1)
}
