// Package steady times how long a hand has been held continuously in place.
package steady

import "time"

// DefaultDuration is the dwell required before a capture completes.
const DefaultDuration = 3000 * time.Millisecond

// Tracker is a two-state machine: Unsteady (no dwell) and Accumulating
// (aligned, timing dwell since dwellStart). It is driven once per frame by
// Update and measures elapsed time on its Clock, never by frame count.
//
// A Tracker is owned by a single session and is not safe for concurrent use.
type Tracker struct {
	clock        Clock
	duration     time.Duration
	dwellStart   time.Time
	accumulating bool
	progress     float64
}

// NewTracker returns an Unsteady tracker. A nil clock uses SystemClock.
func NewTracker(duration time.Duration, clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{
		clock:    clock,
		duration: duration,
	}
}

// Update feeds one frame's alignment result and returns the new progress.
//
// Unsteady -> Accumulating records dwellStart on the first aligned frame.
// Any misaligned frame returns to Unsteady and resets progress to 0.
// While accumulating, progress = clamp(elapsed/duration, 0, 1) and never decreases.
func (t *Tracker) Update(aligned bool) float64 {
	if !aligned {
		t.Reset()
		return 0
	}

	now := t.clock.Now()
	if !t.accumulating {
		t.accumulating = true
		t.dwellStart = now
	}

	p := 1.0
	if t.duration > 0 {
		p = float64(now.Sub(t.dwellStart)) / float64(t.duration)
	}
	p = clamp(p)
	if p > t.progress {
		t.progress = p
	}
	return t.progress
}

// Reset drops any dwell in progress.
func (t *Tracker) Reset() {
	t.accumulating = false
	t.dwellStart = time.Time{}
	t.progress = 0
}

// Progress returns the last computed progress in [0, 1].
func (t *Tracker) Progress() float64 { return t.progress }

// Accumulating reports whether a dwell is being timed.
func (t *Tracker) Accumulating() bool { return t.accumulating }

// Complete reports whether the dwell has reached the full duration.
func (t *Tracker) Complete() bool {
	return t.accumulating && t.progress >= 1
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
