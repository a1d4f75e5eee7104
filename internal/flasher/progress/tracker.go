// Package progress aggregates per-image fractional progress into one
// monotonic phase-progress signal.
package progress

import (
	"sync"
)

// Sink receives the aggregated phase progress in [0,1].
type Sink func(float64)

// Tracker folds the progress callbacks of N sequentially processed items
// into a single value: item i at fraction f reports (i+f)/N. The output
// never decreases within a phase, whatever the per-item callbacks do.
type Tracker struct {
	mu    sync.Mutex
	total int
	last  float64
	sink  Sink
}

// NewTracker creates a tracker for a phase of total items. total must be
// positive; the session guarantees a non-empty manifest.
func NewTracker(total int, sink Sink) *Tracker {
	t := &Tracker{total: total, sink: sink}
	t.sink(0)
	return t
}

// Item returns the progress callback for item index (0-based). The
// callback accepts a fraction in [0,1]; out-of-range and regressing values
// are clamped.
func (t *Tracker) Item(index int) func(float64) {
	return func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		t.mu.Lock()
		overall := (float64(index) + fraction) / float64(t.total)
		if overall < t.last {
			t.mu.Unlock()
			return
		}
		t.last = overall
		sink := t.sink
		t.mu.Unlock()

		sink(overall)
	}
}

// Done forces the phase to 1 after the last item completed.
func (t *Tracker) Done() {
	t.mu.Lock()
	t.last = 1
	sink := t.sink
	t.mu.Unlock()

	sink(1)
}

// Value returns the last aggregated value.
func (t *Tracker) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
