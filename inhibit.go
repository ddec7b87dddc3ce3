package tcansim

import "time"

// Wake-to-assertion delay for the INH output.
const inhAssertDelay = 100 * time.Microsecond

// Voltage drop of the INH high level below the supply rail.
const inhVoltageDrop = 0.75

// InhibitState drives the auxiliary INH output: high in the powered modes,
// high impedance otherwise, with a mask override and a short assertion delay
// after a wake event.
type InhibitState struct {
	Enabled    bool
	OutputHigh bool

	wakeEventTime    mark
	pendingAssertion bool
	wakeLevelPrev    bool

	// Last sampled supply voltage, the high level is derived from it.
	supplyVoltage float64
}

func resetInhibit() InhibitState {
	// Enabled by default, INH_MASK low or floating.
	return InhibitState{Enabled: true}
}

// Update computes the INH output for this tick. wakeEvent is the latched
// wake request level, the assertion delay runs from the tick it first goes
// high.
func (s *InhibitState) Update(mode OperatingMode, maskHigh, wakeEvent bool,
	vsup float64, now time.Duration) {
	s.supplyVoltage = vsup
	s.Enabled = !maskHigh
	wakeEdge := wakeEvent && !s.wakeLevelPrev
	s.wakeLevelPrev = wakeEvent

	// Mask overrides everything else.
	if !s.Enabled {
		s.OutputHigh = false
		s.pendingAssertion = false
		s.wakeEventTime.clear()
		return
	}

	if wakeEdge {
		s.wakeEventTime.start(now)
		s.pendingAssertion = true
	}
	if s.pendingAssertion {
		if elapsed, ok := s.wakeEventTime.elapsed(now); ok && elapsed >= inhAssertDelay {
			s.pendingAssertion = false
		}
	}

	var shouldBeHigh bool
	switch mode {
	case ModeNormal, ModeSilent, ModeStandby:
		shouldBeHigh = true
	case ModeGoToSleep, ModeSleep, ModeOff:
		shouldBeHigh = false
	}

	if shouldBeHigh && s.pendingAssertion {
		// Assertion still pending after a wake, hold high impedance.
		s.OutputHigh = false
	} else {
		s.OutputHigh = shouldBeHigh
	}
}

// PinState reports the INH pin level. The high voltage tracks the supply
// rail minus the pass device drop.
func (s *InhibitState) PinState() (PinState, float64) {
	if !s.Enabled || !s.OutputHigh {
		return PinHighImpedance, 0
	}
	return PinHigh, s.supplyVoltage - inhVoltageDrop
}
