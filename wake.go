package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// WUPState is the wake-up pattern recognizer state.
type WUPState uint8

const (
	WUPIdle WUPState = iota
	WUPFirstDominant
	WUPRecessive
	WUPSecondDominant
	WUPComplete
)

func (w WUPState) String() string {
	switch w {
	case WUPIdle:
		return "IDLE"
	case WUPFirstDominant:
		return "FIRST_DOMINANT"
	case WUPRecessive:
		return "RECESSIVE"
	case WUPSecondDominant:
		return "SECOND_DOMINANT"
	case WUPComplete:
		return "COMPLETE"
	}
	return "UNKNOWN"
}

// WakeState recognizes the dominant/recessive/dominant wake-up pattern on
// the bus and edge events on the local WAKE pin. Both mechanisms run only in
// Standby or Sleep mode, the local detector only in Sleep.
type WakeState struct {
	WAKERQFlag  bool // wake request, cleared on Normal entry
	WAKESRFlag  bool // wake source indicator, persists across ClearFlags
	SourceLocal bool

	State        WUPState
	phaseStart   mark
	timeoutStart mark

	wakePinPrev bool
}

func resetWake() WakeState {
	return WakeState{State: WUPIdle}
}

// Update runs both wake mechanisms for this tick. busState must be the
// previous tick's decoded bus state. filter is the per-phase minimum hold
// time, timeout bounds the whole pattern.
func (s *WakeState) Update(busState BusState, wakePinHigh bool, mode OperatingMode,
	now, filter, timeout time.Duration) {
	if mode == ModeStandby || mode == ModeSleep {
		s.processPattern(busState, now, filter, timeout)
		if mode == ModeSleep {
			s.processLocalEdge(wakePinHigh)
		}
	} else if s.State != WUPIdle {
		s.resetPattern()
	}

	// Edge reference is refreshed every tick so a mode change never turns a
	// stale sample into a phantom edge.
	s.wakePinPrev = wakePinHigh
}

func (s *WakeState) resetPattern() {
	s.State = WUPIdle
	s.phaseStart.clear()
	s.timeoutStart.clear()
}

func (s *WakeState) processPattern(busState BusState, now, filter, timeout time.Duration) {
	// Global timeout discards all progress mid-pattern.
	if s.State != WUPIdle && s.State != WUPComplete {
		if elapsed, ok := s.timeoutStart.elapsed(now); ok && elapsed >= timeout {
			log.Debugf("[WAKE] pattern timeout after %v, back to idle", elapsed)
			s.resetPattern()
			return
		}
	}

	switch s.State {
	case WUPIdle:
		if busState == BusDominant {
			s.State = WUPFirstDominant
			s.phaseStart.start(now)
			s.timeoutStart.start(now)
		}

	case WUPFirstDominant:
		if busState == BusDominant {
			if elapsed, ok := s.phaseStart.elapsed(now); ok && elapsed >= filter {
				s.State = WUPRecessive
				s.phaseStart.start(now)
			}
		} else {
			// Released before the filter time, discard.
			s.resetPattern()
		}

	case WUPRecessive:
		if busState == BusRecessive {
			if elapsed, ok := s.phaseStart.elapsed(now); ok && elapsed >= filter {
				s.State = WUPSecondDominant
				s.phaseStart.start(now)
			}
		} else if busState == BusDominant {
			// Early reversal: accepted as completing the recessive phase if
			// it already met the filter time on its own.
			if elapsed, ok := s.phaseStart.elapsed(now); ok && elapsed >= filter {
				s.State = WUPSecondDominant
				s.phaseStart.start(now)
			} else {
				s.resetPattern()
			}
		}

	case WUPSecondDominant:
		if busState == BusDominant {
			if elapsed, ok := s.phaseStart.elapsed(now); ok && elapsed >= filter {
				s.WAKERQFlag = true
				s.WAKESRFlag = true
				s.SourceLocal = false
				s.State = WUPComplete
				s.phaseStart.clear()
				s.timeoutStart.clear()
				log.Debugf("[WAKE] bus wake-up pattern complete at %v", now)
			}
		} else {
			s.resetPattern()
		}

	case WUPComplete:
		// Stays complete until the handler is reset or flags are cleared.
	}
}

func (s *WakeState) processLocalEdge(wakePinHigh bool) {
	if wakePinHigh == s.wakePinPrev {
		return
	}
	// Any edge wakes, rising or falling. A local event pre-empts an
	// in-progress bus pattern.
	s.WAKERQFlag = true
	s.WAKESRFlag = true
	s.SourceLocal = true
	s.resetPattern()
	log.Debugf("[WAKE] local wake edge on WAKE pin")
}

// ClearFlags clears the wake request and resets the pattern recognizer. The
// wake source indicator deliberately survives, it records why the device
// last woke until the next wake event overwrites it.
func (s *WakeState) ClearFlags() {
	s.WAKERQFlag = false
	s.resetPattern()
}
