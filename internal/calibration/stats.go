package calibration

import "math"

// Statistical primitives for measurement series. Mean and StdDev define the
// per-point aggregates; RemoveOutliers and LinearRegression are on-demand
// utilities and are never applied automatically during aggregation.

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the Bessel-corrected (n−1) sample standard deviation,
// 0 when fewer than two values are present.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// StdDevOfMean returns the standard deviation of the mean (s/√n), 0 for n<2.
func StdDevOfMean(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return StdDev(values) / math.Sqrt(float64(len(values)))
}

// MinMax returns the series extremes, (0, 0) for an empty series.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Range returns max−min, 0 for an empty series.
func Range(values []float64) float64 {
	lo, hi := MinMax(values)
	return hi - lo
}

// RemoveOutliers drops values further than nSigma sample deviations from the
// mean. Series shorter than three values, or with zero spread, pass through
// unchanged.
func RemoveOutliers(values []float64, nSigma float64) []float64 {
	if len(values) < 3 {
		return values
	}
	mean := Mean(values)
	std := StdDev(values)
	if std == 0 {
		return values
	}
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if math.Abs(v-mean) <= nSigma*std {
			kept = append(kept, v)
		}
	}
	return kept
}

// LinearRegression fits y = slope·x + intercept by least squares and returns
// the coefficient of determination. Mismatched or too-short inputs yield
// all zeros.
func LinearRegression(x, y []float64) (slope, intercept, rSquared float64) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, 0, 0
	}
	mx, my := Mean(x), Mean(y)
	var sxx, sxy float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	if sxx == 0 {
		return 0, my, 0
	}
	slope = sxy / sxx
	intercept = my - slope*mx

	var ssRes, ssTot float64
	for i := range x {
		pred := slope*x[i] + intercept
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - my) * (y[i] - my)
	}
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, intercept, rSquared
}
