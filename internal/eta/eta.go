// Package eta derives a smoothed time-remaining estimate from a stream of
// processed-count samples. Totals may grow while a run is underway (archives
// report counts incrementally), so the total is an argument of every
// estimate, never stored state.
package eta

import (
	"time"

	"github.com/mongohaul/mongohaul/internal/constants"
)

type sample struct {
	processed int64
	at        time.Time
}

// Tracker keeps a sliding window of recent samples and computes the rate
// across it. All math is total: inputs that would produce a nonsensical
// estimate (no elapsed time, shrinking counts, zero rate) yield ok=false.
type Tracker struct {
	samples []sample
	window  int
	now     func() time.Time
}

// NewTracker returns a tracker with the default window size.
func NewTracker() *Tracker {
	return &Tracker{
		window: constants.EtaWindowSize,
		now:    time.Now,
	}
}

// Record appends a progress sample. Out-of-order values are stored as-is;
// Estimate guards against the resulting negative deltas.
func (t *Tracker) Record(processed int64) {
	t.samples = append(t.samples, sample{processed: processed, at: t.now()})
	if len(t.samples) > t.window {
		t.samples = t.samples[len(t.samples)-t.window:]
	}
}

// Reset discards all samples; the next Estimate is ok=false again until two
// fresh samples exist.
func (t *Tracker) Reset() {
	t.samples = t.samples[:0]
}

// Estimate returns the time remaining for the given position, or ok=false
// when no sound estimate exists: fewer than two samples, total not yet known,
// zero elapsed time in the window, or a non-positive rate.
func (t *Tracker) Estimate(processed, total int64) (time.Duration, bool) {
	if len(t.samples) < constants.EtaMinSamples || total <= 0 {
		return 0, false
	}
	first := t.samples[0]
	last := t.samples[len(t.samples)-1]

	elapsed := last.at.Sub(first.at)
	done := last.processed - first.processed
	if elapsed <= 0 || done <= 0 {
		return 0, false
	}

	rate := float64(done) / elapsed.Seconds() // documents per second
	if rate <= 0 {
		return 0, false
	}

	remaining := total - processed
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}
