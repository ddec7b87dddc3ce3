package tcansim

import "time"

// TimingEngine is the simulated clock. It only moves forward, by explicit
// caller supplied deltas, and keeps the value it had before the last advance
// so that per-tick scheduling can reference both instants.
type TimingEngine struct {
	now        time.Duration
	lastUpdate time.Duration
}

// Advance moves the clock forward by delta. Negative deltas are ignored,
// which keeps the clock monotonic.
func (t *TimingEngine) Advance(delta time.Duration) {
	if delta < 0 {
		return
	}
	t.lastUpdate = t.now
	t.now += delta
}

// Now returns the current simulated time.
func (t *TimingEngine) Now() time.Duration {
	return t.now
}

// LastUpdate returns the clock value before the most recent advance.
func (t *TimingEngine) LastUpdate() time.Duration {
	return t.lastUpdate
}

// HasElapsed reports whether at least d has passed since start. Callers must
// pass a start value that was taken from this clock, i.e. start <= Now().
func (t *TimingEngine) HasElapsed(start time.Duration, d time.Duration) bool {
	return t.now-start >= d
}

// mark is an optional timestamp used for "condition holds since" timers.
// The zero value is not running. This replaces the numeric sentinel the
// hardware model would otherwise need.
type mark struct {
	at      time.Duration
	running bool
}

func (m *mark) start(now time.Duration) {
	m.at = now
	m.running = true
}

func (m *mark) clear() {
	m.at = 0
	m.running = false
}

// elapsed returns the time since the mark was started, or false if the mark
// is not running.
func (m *mark) elapsed(now time.Duration) (time.Duration, bool) {
	if !m.running {
		return 0, false
	}
	return now - m.at, true
}
