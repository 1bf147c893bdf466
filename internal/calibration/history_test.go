package calibration

import (
	"testing"
	"time"
)

func TestTraceBelowCapacity(t *testing.T) {
	tr := newTrace(5)
	base := time.Now()
	for i := 0; i < 3; i++ {
		tr.append(base.Add(time.Duration(i)*time.Second), float64(i))
	}
	got := tr.snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, p := range got {
		if p.Value != float64(i) {
			t.Errorf("snapshot[%d] = %g, want %d", i, p.Value, i)
		}
	}
}

func TestTraceEvictsOldestFirst(t *testing.T) {
	tr := newTrace(4)
	base := time.Now()
	for i := 0; i < 10; i++ {
		tr.append(base.Add(time.Duration(i)*time.Second), float64(i))
	}
	if tr.len() != 4 {
		t.Fatalf("len = %d, want 4", tr.len())
	}
	got := tr.snapshot()
	want := []float64{6, 7, 8, 9}
	for i, p := range got {
		if p.Value != want[i] {
			t.Errorf("snapshot[%d] = %g, want %g", i, p.Value, want[i])
		}
	}
}

func TestTraceSnapshotIsACopy(t *testing.T) {
	tr := newTrace(3)
	tr.append(time.Now(), 1)
	snap := tr.snapshot()
	snap[0].Value = 99
	if tr.snapshot()[0].Value != 1 {
		t.Error("mutating a snapshot changed the trace")
	}
}
