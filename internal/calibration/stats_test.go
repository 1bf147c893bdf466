package calibration

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []float64{4.2}, want: 4.2},
		{name: "series", values: []float64{1, 2, 3, 4}, want: 2.5},
		{name: "negative", values: []float64{-1, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("Mean(%v) = %g, want %g", tt.values, got, tt.want)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev of one value = %g, want 0", got)
	}
	// Bessel-corrected: [1,2,3,4] has s = sqrt(5/3).
	want := math.Sqrt(5.0 / 3.0)
	if got := StdDev([]float64{1, 2, 3, 4}); !almostEqual(got, want, 1e-12) {
		t.Errorf("StdDev = %g, want %g", got, want)
	}
	if got := StdDev([]float64{7, 7, 7}); got != 0 {
		t.Errorf("StdDev of constant series = %g, want 0", got)
	}
}

func TestStdDevOfMean(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	want := StdDev(values) / 2 // sqrt(4)
	if got := StdDevOfMean(values); !almostEqual(got, want, 1e-12) {
		t.Errorf("StdDevOfMean = %g, want %g", got, want)
	}
	if got := StdDevOfMean([]float64{5}); got != 0 {
		t.Errorf("StdDevOfMean of one value = %g, want 0", got)
	}
}

func TestMinMaxAndRange(t *testing.T) {
	lo, hi := MinMax([]float64{3, -1, 7, 2})
	if lo != -1 || hi != 7 {
		t.Errorf("MinMax = (%g, %g), want (-1, 7)", lo, hi)
	}
	if got := Range([]float64{3, -1, 7, 2}); got != 8 {
		t.Errorf("Range = %g, want 8", got)
	}
	if lo, hi := MinMax(nil); lo != 0 || hi != 0 {
		t.Errorf("MinMax(nil) = (%g, %g), want (0, 0)", lo, hi)
	}
}

func TestRemoveOutliers(t *testing.T) {
	values := []float64{10, 10.1, 9.9, 10.05, 50}
	kept := RemoveOutliers(values, 2)
	for _, v := range kept {
		if v == 50 {
			t.Error("outlier survived filtering")
		}
	}
	if len(kept) != 4 {
		t.Errorf("kept %d values, want 4", len(kept))
	}

	// Short series pass through untouched.
	short := []float64{1, 100}
	if got := RemoveOutliers(short, 2); len(got) != 2 {
		t.Errorf("short series filtered to %d values", len(got))
	}

	// Zero spread passes through untouched.
	flat := []float64{5, 5, 5, 5}
	if got := RemoveOutliers(flat, 2); len(got) != 4 {
		t.Errorf("flat series filtered to %d values", len(got))
	}
}

func TestLinearRegression(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7} // y = 2x + 1 exactly
	slope, intercept, r2 := LinearRegression(x, y)
	if !almostEqual(slope, 2, 1e-12) || !almostEqual(intercept, 1, 1e-12) {
		t.Errorf("fit = %gx + %g, want 2x + 1", slope, intercept)
	}
	if !almostEqual(r2, 1, 1e-12) {
		t.Errorf("r2 = %g, want 1", r2)
	}

	if s, i, r := LinearRegression([]float64{1}, []float64{2}); s != 0 || i != 0 || r != 0 {
		t.Error("short input did not yield zeros")
	}
	if s, i, r := LinearRegression([]float64{1, 2}, []float64{3}); s != 0 || i != 0 || r != 0 {
		t.Error("mismatched input did not yield zeros")
	}

	// Vertical spread around a constant x is degenerate.
	slope, intercept, r2 = LinearRegression([]float64{2, 2, 2}, []float64{1, 2, 3})
	if slope != 0 || !almostEqual(intercept, 2, 1e-12) || r2 != 0 {
		t.Errorf("degenerate fit = %gx + %g (r2 %g), want 0x + 2 (r2 0)", slope, intercept, r2)
	}
}
