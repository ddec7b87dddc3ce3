package tcansim

import "time"

// Bus bias voltage levels, in volts.
const biasVoltage2V5 = 2.5

// BiasState mirrors the transceiver internal state for bias purposes.
type BiasState uint8

const (
	BiasOff BiasState = iota
	BiasAutonomousInactive
	BiasAutonomousActive
	BiasActive
)

func (b BiasState) String() string {
	switch b {
	case BiasOff:
		return "OFF"
	case BiasAutonomousInactive:
		return "AUTONOMOUS_INACTIVE"
	case BiasAutonomousActive:
		return "AUTONOMOUS_ACTIVE"
	case BiasActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// BusBias maps the transceiver state to the bus bias voltage pair and keeps
// its own bus activity timer for the autonomous demotion timeout.
type BusBias struct {
	State           BiasState
	lastBusActivity mark
}

func resetBias() BusBias {
	return BusBias{State: BiasOff}
}

// Update tracks bus activity and mirrors the transceiver state.
func (b *BusBias) Update(canState TransceiverState, busState BusState, now time.Duration) {
	if busState == BusDominant {
		b.lastBusActivity.start(now)
	}
	if !b.lastBusActivity.running {
		b.lastBusActivity.start(now)
	}

	switch canState {
	case TransceiverOff:
		b.State = BiasOff
	case TransceiverAutonomousInactive:
		b.State = BiasAutonomousInactive
	case TransceiverAutonomousActive:
		b.State = BiasAutonomousActive
	case TransceiverActive:
		b.State = BiasActive
	}
}

// Bias returns the bias voltage pair for the current state. Off means high
// impedance with no bias, autonomous inactive pulls both lines to ground,
// autonomous active biases both to 2.5V, active biases to half the logic
// supply.
func (b *BusBias) Bias(vcc float64) (canh, canl float64) {
	switch b.State {
	case BiasOff:
		return 0, 0
	case BiasAutonomousInactive:
		return 0, 0
	case BiasAutonomousActive:
		return biasVoltage2V5, biasVoltage2V5
	case BiasActive:
		return vcc / 2, vcc / 2
	}
	return 0, 0
}

// IsSilenceTimeout reports whether the bus has been silent longer than the
// configured silence threshold.
func (b *BusBias) IsSilenceTimeout(now, silence time.Duration) bool {
	elapsed, ok := b.lastBusActivity.elapsed(now)
	return ok && elapsed > silence
}
