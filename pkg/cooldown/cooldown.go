package cooldown

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the minimum gap between two alerts for the same
// (subject, category) pair.
const DefaultWindow = 5 * time.Minute

// Tracker rate-limits repeated alerts for the same (subject, category) pair.
// The window is measured from the previous sent time, not the detection time.
//
// Records are never garbage collected. Growth is bounded by the number of
// distinct clients times the number of alert categories, which is acceptable
// for a bounded client population.
type Tracker struct {
	window time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTracker creates a tracker with the given cooldown window. A zero or
// negative window falls back to DefaultWindow.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window:   window,
		lastSent: make(map[string]time.Time),
	}
}

// ShouldSend reports whether an alert for (subject, category) is allowed at
// the given time: either no alert was ever sent for the pair, or the last
// send is older than the cooldown window.
func (t *Tracker) ShouldSend(subject, category string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastSent[key(subject, category)]
	if !ok {
		return true
	}
	return now.Sub(last) > t.window
}

// MarkSent records a successful send for (subject, category), starting the
// next cooldown window.
func (t *Tracker) MarkSent(subject, category string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent[key(subject, category)] = now
}

// Len returns the number of tracked (subject, category) pairs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSent)
}

func key(subject, category string) string {
	return fmt.Sprintf("%s:%s", subject, category)
}
