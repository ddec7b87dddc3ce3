package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// OperatingMode is the device operating mode.
type OperatingMode uint8

const (
	ModeNormal    OperatingMode = iota // EN high, nSTB high
	ModeSilent                         // EN low, nSTB high, listen only
	ModeStandby                        // nSTB low with a latched wake request
	ModeGoToSleep                      // nSTB low, transitional
	ModeSleep                          // after the silence timeout
	ModeOff                            // supply below threshold
)

func (m OperatingMode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeSilent:
		return "SILENT"
	case ModeStandby:
		return "STANDBY"
	case ModeGoToSleep:
		return "GO_TO_SLEEP"
	case ModeSleep:
		return "SLEEP"
	case ModeOff:
		return "OFF"
	}
	return "UNKNOWN"
}

// modeEdge is a directed transition between two operating modes.
type modeEdge struct {
	from OperatingMode
	to   OperatingMode
}

// The directed transition table. Transitions not listed here (other than
// self transitions) are ignored by the controller.
var validModeTransitions = map[modeEdge]struct{}{
	{ModeOff, ModeNormal}: {},
	{ModeOff, ModeSilent}: {},

	{ModeNormal, ModeSilent}: {},
	{ModeSilent, ModeNormal}: {},

	{ModeNormal, ModeStandby}: {},
	{ModeSilent, ModeStandby}: {},

	{ModeNormal, ModeGoToSleep}: {},
	{ModeSilent, ModeGoToSleep}: {},

	{ModeGoToSleep, ModeSleep}: {},

	{ModeStandby, ModeNormal}: {},
	{ModeStandby, ModeSilent}: {},

	{ModeSleep, ModeStandby}: {},

	{ModeNormal, ModeOff}:    {},
	{ModeSilent, ModeOff}:    {},
	{ModeStandby, ModeOff}:   {},
	{ModeGoToSleep, ModeOff}: {},
	{ModeSleep, ModeOff}:     {},
}

// CanTransition reports whether a direct transition from one mode to another
// is allowed. Self transitions are always allowed.
func CanTransition(from, to OperatingMode) bool {
	if from == to {
		return true
	}
	_, ok := validModeTransitions[modeEdge{from, to}]
	return ok
}

// ModeState is the operating mode machine.
type ModeState struct {
	Current     OperatingMode
	Previous    OperatingMode
	EntryTime   time.Duration
	WakeRequest bool
}

func resetMode() ModeState {
	return ModeState{Current: ModeOff, Previous: ModeOff}
}

// targetMode derives the desired mode from inputs, by strict priority:
// supply loss first, then the automatic go-to-sleep timeout, then the
// control pin levels.
func (s *ModeState) targetMode(enHigh, nstbHigh, supplyValid, wakeRequested bool,
	timeInMode, silence time.Duration) OperatingMode {
	if !supplyValid {
		return ModeOff
	}
	if s.Current == ModeGoToSleep && timeInMode >= silence {
		return ModeSleep
	}
	if nstbHigh {
		if enHigh {
			return ModeNormal
		}
		return ModeSilent
	}
	if wakeRequested {
		return ModeStandby
	}
	if s.Current == ModeSleep {
		return ModeSleep
	}
	return ModeGoToSleep
}

// Update evaluates the machine for this tick and returns the (possibly
// unchanged) current mode. An illegal target is not an error, the device
// ignores impossible transition requests and stays put.
func (s *ModeState) Update(enHigh, nstbHigh, supplyValid, wakeRequested bool,
	now, silence time.Duration) OperatingMode {
	s.WakeRequest = wakeRequested

	target := s.targetMode(enHigh, nstbHigh, supplyValid, wakeRequested,
		s.TimeInMode(now), silence)
	if target != s.Current && CanTransition(s.Current, target) {
		log.Debugf("[MODE] %v -> %v at %v", s.Current, target, now)
		s.Previous = s.Current
		s.Current = target
		s.EntryTime = now
	}
	return s.Current
}

// TimeInMode returns how long the machine has been in the current mode,
// saturating at zero.
func (s *ModeState) TimeInMode(now time.Duration) time.Duration {
	if now < s.EntryTime {
		return 0
	}
	return now - s.EntryTime
}
