package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// BusState is the decoded logical state of the differential bus.
type BusState uint8

const (
	BusDominant BusState = iota
	BusRecessive
	BusIndeterminate
)

func (b BusState) String() string {
	switch b {
	case BusDominant:
		return "DOMINANT"
	case BusRecessive:
		return "RECESSIVE"
	case BusIndeterminate:
		return "INDETERMINATE"
	}
	return "UNKNOWN"
}

// TransceiverState is the internal state of the CAN transceiver block.
type TransceiverState uint8

const (
	TransceiverOff TransceiverState = iota
	TransceiverAutonomousInactive
	TransceiverAutonomousActive
	TransceiverActive
)

func (t TransceiverState) String() string {
	switch t {
	case TransceiverOff:
		return "OFF"
	case TransceiverAutonomousInactive:
		return "AUTONOMOUS_INACTIVE"
	case TransceiverAutonomousActive:
		return "AUTONOMOUS_ACTIVE"
	case TransceiverActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// Differential voltage thresholds for bus state detection, in volts.
const (
	vdiffDominant  = 0.9 // >= is dominant
	vdiffRecessive = 0.5 // <= is recessive
)

// Bus drive voltage levels, in volts.
const (
	canhDominantVoltage  = 3.5
	canlDominantVoltage  = 1.5
	canhRecessiveVoltage = 2.5
	canlRecessiveVoltage = 2.5
)

// RXD propagation delays, the fixed midpoints of the loop delay ranges
// (100-190ns recessive to dominant, 110-190ns dominant to recessive).
const (
	propDelayToDominant  = 145 * time.Nanosecond
	propDelayToRecessive = 150 * time.Nanosecond
)

// DecodeBusState decodes the bus logic state from the differential voltage
// CANH - CANL. Voltages between the two thresholds are indeterminate and
// callers should retain the previous decoded state rather than act on it.
func DecodeBusState(vdiff float64) BusState {
	switch {
	case vdiff >= vdiffDominant:
		return BusDominant
	case vdiff <= vdiffRecessive:
		return BusRecessive
	default:
		return BusIndeterminate
	}
}

// CANTransceiver models the transmit/receive block: the four-state machine,
// the bus driver and the delayed RXD output.
type CANTransceiver struct {
	State           TransceiverState
	DriverEnabled   bool
	ReceiverEnabled bool

	CANHVoltage float64
	CANLVoltage float64

	// RXD output with at most one pending delayed update.
	RXDOutput       bool
	rxdPending      bool
	rxdPendingValue bool
	rxdUpdateTime   time.Duration

	// Last observed dominant level, for the silence timeout. Owned per
	// instance so two simulators never share timing.
	lastBusActivity mark
}

func resetTransceiver() CANTransceiver {
	return CANTransceiver{
		State:     TransceiverOff,
		RXDOutput: true, // idle recessive
	}
}

// UpdateStateMachine advances the internal state machine for this tick.
// busState must be the previous tick's decoded bus state, the machine must
// not react to voltages it is about to drive itself.
func (c *CANTransceiver) UpdateStateMachine(mode OperatingMode, busState BusState,
	supplyValid bool, now, silence time.Duration) {
	if busState == BusDominant {
		c.lastBusActivity.start(now)
	}
	if !c.lastBusActivity.running {
		c.lastBusActivity.start(now)
	}

	prev := c.State
	switch c.State {
	case TransceiverOff:
		if supplyValid {
			c.State = TransceiverAutonomousInactive
		}
	case TransceiverAutonomousInactive:
		if !supplyValid {
			c.State = TransceiverOff
		} else if mode == ModeNormal || mode == ModeSilent {
			c.State = TransceiverActive
		} else if busState == BusDominant {
			// Remote activity while unpowered logic, wake path.
			c.State = TransceiverAutonomousActive
			c.lastBusActivity.start(now)
		}
	case TransceiverAutonomousActive:
		if !supplyValid {
			c.State = TransceiverOff
		} else if mode == ModeNormal || mode == ModeSilent {
			c.State = TransceiverActive
		} else if elapsed, ok := c.lastBusActivity.elapsed(now); ok && elapsed > silence {
			c.State = TransceiverAutonomousInactive
		}
	case TransceiverActive:
		if !supplyValid {
			c.State = TransceiverOff
		} else if mode != ModeNormal && mode != ModeSilent {
			elapsed, ok := c.lastBusActivity.elapsed(now)
			if busState == BusDominant || (ok && elapsed <= silence) {
				c.State = TransceiverAutonomousActive
			} else {
				c.State = TransceiverAutonomousInactive
			}
		}
	}
	if c.State != prev {
		log.Debugf("[CAN] transceiver %v -> %v at %v", prev, c.State, now)
	}

	switch c.State {
	case TransceiverOff:
		c.DriverEnabled = false
		c.ReceiverEnabled = false
	case TransceiverAutonomousInactive, TransceiverAutonomousActive:
		c.DriverEnabled = false
		c.ReceiverEnabled = true
	case TransceiverActive:
		switch mode {
		case ModeNormal:
			c.DriverEnabled = true
			c.ReceiverEnabled = true
		case ModeSilent:
			c.DriverEnabled = false
			c.ReceiverEnabled = true
		default:
			c.DriverEnabled = false
			c.ReceiverEnabled = false
		}
	}
}

// DriveBus returns the bus voltage pair for the requested level. Dominant is
// only driven while the driver is enabled, everything else yields the
// recessive bias pair.
func (c *CANTransceiver) DriveBus(dominant bool) (canh, canl float64) {
	if dominant && c.DriverEnabled {
		canh, canl = canhDominantVoltage, canlDominantVoltage
	} else {
		canh, canl = canhRecessiveVoltage, canlRecessiveVoltage
	}
	c.CANHVoltage = canh
	c.CANLVoltage = canl
	return canh, canl
}

// UpdateRXD applies and schedules the delayed receive output. now is the
// clock after this tick's advance, scheduleTime the clock before it: new
// updates are scheduled relative to when the bus edge occurred, pending
// updates are applied against the current clock.
func (c *CANTransceiver) UpdateRXD(busState BusState, now, scheduleTime time.Duration) {
	if !c.ReceiverEnabled {
		c.RXDOutput = true
		c.rxdPending = false
		return
	}

	if c.rxdPending && now >= c.rxdUpdateTime {
		c.RXDOutput = c.rxdPendingValue
		c.rxdPending = false
	}

	var target bool
	switch busState {
	case BusDominant:
		target = false
	case BusRecessive:
		target = true
	case BusIndeterminate:
		// Keep output and any pending schedule unchanged.
		return
	}

	needsUpdate := target != c.RXDOutput
	pendingStale := c.rxdPending && c.rxdPendingValue != target
	if !needsUpdate || (c.rxdPending && !pendingStale) {
		return
	}

	delay := propDelayToRecessive
	if !target {
		delay = propDelayToDominant
	}
	updateTime := scheduleTime + delay
	if updateTime <= now {
		c.RXDOutput = target
		c.rxdPending = false
	} else {
		c.rxdPending = true
		c.rxdPendingValue = target
		c.rxdUpdateTime = updateTime
	}
}
