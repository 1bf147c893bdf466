package calibration

import (
	"math"

	"github.com/kpszeniczka/temperature-calibration-system/internal/config"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// DefaultCoverageFactor expands combined standard uncertainty to roughly
// 95 % confidence.
const DefaultCoverageFactor = 2.0

// Distribution names for budget components.
const (
	DistributionRectangular = "rectangular"
	DistributionNormal      = "normal"
)

// BudgetComponent is one named contribution to a type-B budget.
type BudgetComponent struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Distribution string  `json:"distribution"`
	Divisor      float64 `json:"divisor"`
	Sensitivity  float64 `json:"sensitivity"`
}

// StandardUncertainty is the component value reduced by its divisor.
func (c BudgetComponent) StandardUncertainty() float64 {
	return c.Value / c.Divisor
}

func (c BudgetComponent) contribution() float64 {
	u := c.Sensitivity * c.StandardUncertainty()
	return u * u
}

// Budget is an ordered set of uncertainty components combined by
// root-sum-of-squares.
type Budget struct {
	components []BudgetComponent
}

// Add appends a component. A zero divisor defaults to √3 for rectangular
// distributions and 1 otherwise; a zero sensitivity defaults to 1.
func (b *Budget) Add(c BudgetComponent) {
	if c.Distribution == "" {
		c.Distribution = DistributionRectangular
	}
	if c.Divisor == 0 {
		if c.Distribution == DistributionRectangular {
			c.Divisor = math.Sqrt(3)
		} else {
			c.Divisor = 1
		}
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = 1
	}
	b.components = append(b.components, c)
}

// Combined returns the RSS of all component contributions.
func (b *Budget) Combined() float64 {
	total := 0.0
	for _, c := range b.components {
		total += c.contribution()
	}
	return math.Sqrt(total)
}

// BudgetEntry is a budget table row for reporting.
type BudgetEntry struct {
	BudgetComponent
	Standard   float64 `json:"standard_uncertainty"`
	Percentage float64 `json:"percentage_contribution"`
}

// Table returns the component breakdown with percentage contributions.
func (b *Budget) Table() []BudgetEntry {
	combined := b.Combined()
	rows := make([]BudgetEntry, 0, len(b.components))
	for _, c := range b.components {
		row := BudgetEntry{BudgetComponent: c, Standard: c.StandardUncertainty()}
		if combined > 0 {
			row.Percentage = c.contribution() / (combined * combined) * 100
		}
		rows = append(rows, row)
	}
	return rows
}

// Evaluator computes the GUM uncertainty components and the accuracy class
// for one sensor type. Thermocouple budgets carry a larger systematic share:
// doubled reference and drift terms plus a cold-junction term.
type Evaluator struct {
	sensorType string
	budget     Budget
}

// NewEvaluator builds the type-B budget for the given sensor type from the
// configured component magnitudes.
func NewEvaluator(sensorType string, cfg config.Budget) *Evaluator {
	e := &Evaluator{sensorType: sensorType}

	reference, drift := cfg.ReferenceC, cfg.DriftC
	if models.IsThermocouple(sensorType) {
		reference *= 2
		drift *= 2
	}
	e.budget.Add(BudgetComponent{Name: "reference standard", Value: reference})
	e.budget.Add(BudgetComponent{Name: "resolution", Value: cfg.ResolutionC})
	e.budget.Add(BudgetComponent{Name: "furnace stability", Value: cfg.StabilityC})
	e.budget.Add(BudgetComponent{Name: "spatial homogeneity", Value: cfg.HomogeneityC})
	e.budget.Add(BudgetComponent{Name: "inter-comparison drift", Value: drift})
	if models.IsThermocouple(sensorType) {
		e.budget.Add(BudgetComponent{Name: "cold junction", Value: cfg.ColdJunctionC})
	}
	return e
}

// TypeA is the statistical uncertainty of the mean: s/√n, 0 for n<2.
func (e *Evaluator) TypeA(stdDev float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return stdDev / math.Sqrt(float64(n))
}

// TypeB is the systematic budget combined by RSS.
func (e *Evaluator) TypeB() float64 {
	return e.budget.Combined()
}

// BudgetTable exposes the component breakdown for certificates.
func (e *Evaluator) BudgetTable() []BudgetEntry {
	return e.budget.Table()
}

// Combined merges type A and type B in quadrature.
func Combined(typeA, typeB float64) float64 {
	return math.Sqrt(typeA*typeA + typeB*typeB)
}

// Expanded scales combined standard uncertainty by the coverage factor.
func Expanded(combined, k float64) float64 {
	return k * combined
}

// Classify returns the tightest accuracy class the error satisfies at the
// given temperature, and whether the sensor is compliant with any class.
func (e *Evaluator) Classify(err, temperature float64) (string, bool) {
	class := classify(e.sensorType, math.Abs(err), temperature)
	return class, class != OutOfClass
}
