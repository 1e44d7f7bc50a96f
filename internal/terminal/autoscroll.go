// internal/terminal/autoscroll.go

package terminal

import "time"

// DefaultScrollQuiet is how long after a manual scroll the view stays put
// even if the user is back at the bottom.
const DefaultScrollQuiet = 2 * time.Second

// Clock supplies the current time. Production code uses RealClock; tests
// inject a fixed or stepped clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// AutoScroll decides whether new output should pin the view to the bottom.
// It samples scroll events instead of running timers, so the decision is a
// synchronous function of the last event and the clock.
type AutoScroll struct {
	clock      Clock
	quiet      time.Duration
	enabled    bool
	atBottom   bool
	lastScroll time.Time
}

func NewAutoScroll(clock Clock, enabled bool, quiet time.Duration) *AutoScroll {
	if clock == nil {
		clock = RealClock{}
	}
	if quiet <= 0 {
		quiet = DefaultScrollQuiet
	}
	return &AutoScroll{
		clock:    clock,
		quiet:    quiet,
		enabled:  enabled,
		atBottom: true,
	}
}

// Scrolled records a manual scroll by the user and where it left the view.
func (a *AutoScroll) Scrolled(atBottom bool) {
	a.atBottom = atBottom
	a.lastScroll = a.clock.Now()
}

// Follow reports whether freshly appended output should move the view to
// the bottom.
func (a *AutoScroll) Follow() bool {
	if !a.enabled || !a.atBottom {
		return false
	}
	if a.lastScroll.IsZero() {
		return true
	}
	return a.clock.Now().Sub(a.lastScroll) >= a.quiet
}

func (a *AutoScroll) Enabled() bool {
	return a.enabled
}

// Toggle flips the user setting and returns the new value.
func (a *AutoScroll) Toggle() bool {
	a.enabled = !a.enabled
	return a.enabled
}

// Reset forgets scroll activity, as when the scrollback is cleared and the
// view returns to the top.
func (a *AutoScroll) Reset() {
	a.atBottom = true
	a.lastScroll = time.Time{}
}
