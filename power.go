package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Undervoltage thresholds in volts. Each rail has asymmetric rising and
// falling thresholds, values between the two hold the previous flag state.
const (
	uvsupFalling = 3.5
	uvsupRising  = 3.85

	uvccFallingCeiling = 3.9
	uvccRising         = 4.1

	uvioFallingCeiling = 1.25
	uvioRising         = 1.4
)

// PowerState tracks the three supply rails. VSUP reacts immediately, VCC and
// VIO must stay below their falling ceiling for the configured filter time
// before the undervoltage flag asserts.
type PowerState struct {
	VSUP float64
	VCC  float64
	VIO  float64

	UVSUPFlag bool
	UVCCFlag  bool
	UVIOFlag  bool
	PWRONFlag bool

	uvccStart mark
	uvioStart mark
}

// resetPower returns the power-on-reset state: all rails read as unpowered
// until the first update observes them, so a cold boot that brings VSUP
// above the rising threshold latches PWRON.
func resetPower() PowerState {
	return PowerState{
		VSUP:      0,
		VCC:       0,
		VIO:       0,
		UVSUPFlag: true,
		UVCCFlag:  true,
		UVIOFlag:  true,
	}
}

// Update samples the three rails at the given instant. filter is the
// configured undervoltage filter time for the VCC and VIO rails.
func (s *PowerState) Update(vsup, vcc, vio float64, now, filter time.Duration) {
	prevVCC := s.VCC
	prevVIO := s.VIO
	s.VSUP = vsup
	s.VCC = vcc
	s.VIO = vio

	// VSUP: immediate hysteresis, no filter. Clearing the flag is the
	// power-on event.
	if !s.UVSUPFlag && vsup <= uvsupFalling {
		s.UVSUPFlag = true
		log.Debugf("[POWER] UVSUP set, vsup=%.2fV", vsup)
	} else if s.UVSUPFlag && vsup > uvsupRising {
		s.UVSUPFlag = false
		s.PWRONFlag = true
		log.Debugf("[POWER] UVSUP cleared, PWRON latched, vsup=%.2fV", vsup)
	}

	s.updateFiltered(&s.UVCCFlag, &s.uvccStart, vcc, prevVCC,
		uvccFallingCeiling, uvccRising, now, filter, "UVCC")
	s.updateFiltered(&s.UVIOFlag, &s.uvioStart, vio, prevVIO,
		uvioFallingCeiling, uvioRising, now, filter, "UVIO")
}

func (s *PowerState) updateFiltered(flag *bool, since *mark, v, prev float64,
	fallingCeiling, rising float64, now, filter time.Duration, name string) {
	switch {
	case v < fallingCeiling:
		if !since.running && !*flag {
			since.start(now)
		}
		if elapsed, ok := since.elapsed(now); ok && elapsed >= filter && !*flag {
			*flag = true
			since.clear()
			log.Debugf("[POWER] %s set after %v below %.2fV", name, elapsed, fallingCeiling)
		}
	case v > rising:
		if *flag {
			*flag = false
			log.Debugf("[POWER] %s cleared, v=%.2fV", name, v)
		}
		since.clear()
	default:
		// Inside the hysteresis band the flag holds, but a rising voltage
		// restarts the filter.
		if v > prev {
			since.clear()
		}
	}
}

func (s *PowerState) VSUPValid() bool { return !s.UVSUPFlag }
func (s *PowerState) VCCValid() bool  { return !s.UVCCFlag }
func (s *PowerState) VIOValid() bool  { return !s.UVIOFlag }

// ClearPWRON clears the sticky power-on flag. Done by the mode controller
// integration on the wake-up entry into Normal mode.
func (s *PowerState) ClearPWRON() {
	s.PWRONFlag = false
}
