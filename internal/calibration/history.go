package calibration

import (
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// historyCapacity bounds each live-display trace. Oldest samples are
// evicted first; persisted measurements are never affected.
const historyCapacity = 1000

// trace is a fixed-capacity FIFO of timestamped values.
type trace struct {
	cap   int
	data  []models.TracePoint
	start int
}

func newTrace(capacity int) *trace {
	return &trace{cap: capacity, data: make([]models.TracePoint, 0, capacity)}
}

func (t *trace) append(at time.Time, value float64) {
	p := models.TracePoint{At: at, Value: value}
	if len(t.data) < t.cap {
		t.data = append(t.data, p)
		return
	}
	t.data[t.start] = p
	t.start = (t.start + 1) % t.cap
}

func (t *trace) len() int { return len(t.data) }

// snapshot returns the samples oldest first.
func (t *trace) snapshot() []models.TracePoint {
	out := make([]models.TracePoint, 0, len(t.data))
	out = append(out, t.data[t.start:]...)
	out = append(out, t.data[:t.start]...)
	return out
}
