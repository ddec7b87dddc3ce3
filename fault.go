package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Thermal shutdown threshold in degrees Celsius.
const thermalShutdownCelsius = 165.0

// Consecutive dominant-to-recessive edges before the bus fault flag latches.
const busFaultEdgeLimit = 4

// FaultState holds the six independent fault flags. All flags except TSD are
// latched: once set they stay set until the simulator is reset.
type FaultState struct {
	TXDCLPFlag bool // TXD clamped low on Normal entry
	TXDDTOFlag bool // TXD dominant timeout
	TXDRXDFlag bool // TXD/RXD loopback short
	CANDOMFlag bool // bus dominant timeout
	TSDFlag    bool // thermal shutdown, level triggered
	CBFFlag    bool // bus fault, four dominant-to-recessive edges

	txdDominantSince mark
	loopbackSince    mark
	busDominantSince mark

	edgeCount    int
	prevBusState BusState
}

func resetFaults() FaultState {
	return FaultState{prevBusState: BusRecessive}
}

// CheckTXDCLP latches the clamp fault when TXD is sampled low at the instant
// the device enters Normal mode. Called only on such a transition.
func (s *FaultState) CheckTXDCLP(txdLow bool, entering OperatingMode) {
	if entering == ModeNormal && txdLow {
		if !s.TXDCLPFlag {
			log.Debugf("[FAULT] TXDCLP set, TXD low on Normal entry")
		}
		s.TXDCLPFlag = true
	}
}

// timedLatch runs the shared "condition holds for at least window" pattern.
// The start mark resets whenever the condition stops holding, the flag never
// auto-clears.
func (s *FaultState) timedLatch(flag *bool, since *mark, holding bool,
	now, window time.Duration, name string) {
	if !holding {
		since.clear()
		return
	}
	if !since.running {
		since.start(now)
		return
	}
	if elapsed, _ := since.elapsed(now); elapsed >= window && !*flag {
		*flag = true
		log.Debugf("[FAULT] %s set after %v", name, elapsed)
	}
}

// Update re-evaluates all level and time based fault checks for this tick.
// txddto and busdom are the configured timeout windows.
func (s *FaultState) Update(txdLow, rxdLow bool, busState BusState,
	junctionTemp float64, now time.Duration, mode OperatingMode,
	txddto, busdom time.Duration) {

	s.timedLatch(&s.TXDDTOFlag, &s.txdDominantSince, txdLow, now, txddto, "TXDDTO")
	s.timedLatch(&s.TXDRXDFlag, &s.loopbackSince, txdLow == rxdLow, now, txddto, "TXDRXD")
	s.timedLatch(&s.CANDOMFlag, &s.busDominantSince, busState == BusDominant, now, busdom, "CANDOM")

	// Thermal shutdown is the only auto-clearing fault.
	tsd := junctionTemp >= thermalShutdownCelsius
	if tsd != s.TSDFlag {
		log.Debugf("[FAULT] TSD=%v, tj=%.1fC", tsd, junctionTemp)
	}
	s.TSDFlag = tsd

	// Bus fault: count dominant-to-recessive edges while in an active mode.
	// Edge tracking is frozen outside Normal/Silent.
	if mode != ModeNormal && mode != ModeSilent {
		s.edgeCount = 0
		return
	}
	if s.prevBusState == BusDominant && busState == BusRecessive {
		s.edgeCount++
		if s.edgeCount >= busFaultEdgeLimit && !s.CBFFlag {
			s.CBFFlag = true
			log.Debugf("[FAULT] CBF set after %d edges", s.edgeCount)
		}
	}
	s.prevBusState = busState
}

// HasAnyFault reports whether any of the six fault flags is set.
func (s *FaultState) HasAnyFault() bool {
	return s.TXDCLPFlag || s.TXDDTOFlag || s.TXDRXDFlag ||
		s.CANDOMFlag || s.TSDFlag || s.CBFFlag
}

// NFAULTActive reports whether the active-low fault pin should be driven
// low.
func (s *FaultState) NFAULTActive() bool {
	return s.HasAnyFault()
}

// ShouldDisableDriver reports whether a fault condition requires the CAN
// driver to be disabled. CANDOM and CBF are reported but do not gate the
// driver.
func (s *FaultState) ShouldDisableDriver() bool {
	return s.TXDCLPFlag || s.TXDDTOFlag || s.TXDRXDFlag || s.TSDFlag
}
