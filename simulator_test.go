package tcansim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// powerUp brings a fresh simulator into Normal mode.
func powerUp(s *Simulator) {
	s.SetSupplyVoltages(12.0, 5.0, 3.3)
	s.Step(340 * time.Microsecond)
	s.SetPin(PinEN, PinHigh, 3.3)
	s.SetPin(PinNSTB, PinHigh, 3.3)
	s.Step(200 * time.Microsecond)
}

// sleep drives a Normal-mode simulator through GoToSleep into Sleep.
func sleep(s *Simulator) {
	s.SetPin(PinNSTB, PinLow, 0)
	s.Step(10 * time.Microsecond)
	s.Step(s.TimingParams().SilenceTimeout)
}

func TestSimulatorMonotonicTime(t *testing.T) {
	sim := NewSimulator()
	assert.EqualValues(t, 0, sim.Now())

	deltas := []time.Duration{time.Microsecond, 3 * time.Millisecond, 0, 7 * time.Nanosecond}
	var sum time.Duration
	for _, d := range deltas {
		sim.Step(d)
		sum += d
		assert.Equal(t, sum, sim.Now())
	}
}

func TestSimulatorPowerUpScenario(t *testing.T) {
	sim := NewSimulator()
	assert.Equal(t, ModeOff, sim.Mode())

	assert.Nil(t, sim.SetSupplyVoltages(5.0, 5.0, 3.3))
	sim.Step(340000 * time.Nanosecond)
	assert.Nil(t, sim.SetPin(PinEN, PinHigh, 3.3))
	assert.Nil(t, sim.SetPin(PinNSTB, PinHigh, 3.3))
	sim.Step(200000 * time.Nanosecond)

	assert.Equal(t, ModeNormal, sim.Mode())
	assert.True(t, sim.GetFlags().PWRON)
}

func TestSimulatorDominantTimeoutScenario(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)
	assert.Equal(t, ModeNormal, sim.Mode())

	assert.Nil(t, sim.SetPin(PinTXD, PinLow, 0))
	for i := 0; i < 10; i++ {
		sim.Step(500 * time.Microsecond)
	}

	flags := sim.GetFlags()
	assert.True(t, flags.TXDDTO)
	assert.True(t, sim.faults.NFAULTActive())
	assert.True(t, sim.faults.ShouldDisableDriver())

	state, _, _ := sim.GetPin(PinNFAULT)
	assert.Equal(t, PinLow, state)

	// Driver gated off: the bus carries the bias level, not a dominant.
	_, canh, _ := sim.GetPin(PinCANH)
	_, canl, _ := sim.GetPin(PinCANL)
	assert.Equal(t, BusRecessive, DecodeBusState(canh-canl))
}

func TestSimulatorSleepWakeScenario(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)

	sim.SetPin(PinNSTB, PinLow, 0)
	sim.Step(10 * time.Microsecond)
	assert.Equal(t, ModeGoToSleep, sim.Mode())

	sim.Step(sim.TimingParams().SilenceTimeout)
	assert.Equal(t, ModeSleep, sim.Mode())

	// A local wake edge promotes to Standby.
	sim.SetPin(PinWAKE, PinHigh, 3.3)
	sim.Step(10 * time.Microsecond)
	flags := sim.GetFlags()
	assert.True(t, flags.WAKERQ)
	assert.True(t, flags.WAKESR)
	assert.Equal(t, ModeStandby, sim.Mode())

	// Standby input back high: Sleep -> Standby -> Normal, the wake and
	// power-on flags are consumed on the Normal entry.
	sim.SetPin(PinNSTB, PinHigh, 3.3)
	sim.Step(10 * time.Microsecond)
	assert.Equal(t, ModeNormal, sim.Mode())
	flags = sim.GetFlags()
	assert.False(t, flags.WAKERQ)
	assert.False(t, flags.PWRON)
	// The source indicator survived.
	assert.True(t, flags.WAKESR)
}

func TestSimulatorTransmitReceivePath(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)

	sim.SetPin(PinTXD, PinLow, 0)
	sim.Step(time.Microsecond)
	state, _, _ := sim.GetPin(PinRXD)
	assert.Equal(t, PinLow, state)

	sim.SetPin(PinTXD, PinHigh, 3.3)
	sim.Step(time.Microsecond)
	state, voltage, _ := sim.GetPin(PinRXD)
	assert.Equal(t, PinHigh, state)
	assert.Equal(t, 3.3, voltage)
}

func TestSimulatorSilentModeMutesDriver(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)

	sim.SetPin(PinEN, PinLow, 0)
	sim.Step(10 * time.Microsecond)
	assert.Equal(t, ModeSilent, sim.Mode())

	// A dominant request in Silent must not reach the bus.
	sim.SetPin(PinTXD, PinLow, 0)
	sim.Step(time.Microsecond)
	_, canh, _ := sim.GetPin(PinCANH)
	_, canl, _ := sim.GetPin(PinCANL)
	assert.Equal(t, BusRecessive, DecodeBusState(canh-canl))
}

func TestSimulatorUndervoltageDropsToOff(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)
	assert.Equal(t, ModeNormal, sim.Mode())

	assert.Nil(t, sim.SetSupplyVoltages(3.0, 5.0, 3.3))
	sim.Step(10 * time.Microsecond)
	assert.Equal(t, ModeOff, sim.Mode())
	assert.True(t, sim.GetFlags().UVSUP)

	// Recovery re-latches the power-on flag.
	assert.Nil(t, sim.SetSupplyVoltages(12.0, 5.0, 3.3))
	sim.Step(10 * time.Microsecond)
	assert.False(t, sim.GetFlags().UVSUP)
	assert.True(t, sim.GetFlags().PWRON)
	assert.Equal(t, ModeNormal, sim.Mode())
}

func TestSimulatorINHOutput(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)

	state, voltage, _ := sim.GetPin(PinINH)
	assert.Equal(t, PinHigh, state)
	assert.Equal(t, 11.25, voltage)

	// Mask forces high impedance regardless of mode.
	sim.SetPin(PinINHMask, PinHigh, 3.3)
	sim.Step(time.Microsecond)
	state, _, _ = sim.GetPin(PinINH)
	assert.Equal(t, PinHighImpedance, state)
}

func TestSimulatorRunUntil(t *testing.T) {
	sim := NewSimulator()
	sim.SetPin(PinEN, PinHigh, 3.3)
	sim.SetPin(PinNSTB, PinHigh, 3.3)

	ok := sim.RunUntil(func(s *Simulator) bool {
		return s.Mode() == ModeNormal
	}, time.Millisecond)
	assert.True(t, ok)

	ok = sim.RunUntil(func(s *Simulator) bool {
		return s.Mode() == ModeSleep
	}, 100*time.Microsecond)
	assert.False(t, ok)

	assert.False(t, sim.RunUntil(nil, time.Millisecond))
}

func TestSimulatorSetPinsBatch(t *testing.T) {
	sim := NewSimulator()

	err := sim.SetPins([]PinValue{
		{Pin: PinEN, State: PinHigh, Voltage: 3.3},
		{Pin: PinNSTB, State: PinHigh, Voltage: 3.3},
	})
	assert.Nil(t, err)

	// Every write is attempted, the first failure is reported.
	err = sim.SetPins([]PinValue{
		{Pin: PinRXD, State: PinLow, Voltage: 0},
		{Pin: PinWAKE, State: PinHigh, Voltage: 3.3},
	})
	assert.Equal(t, ErrPinNotSettable, err)
	state, _, _ := sim.GetPin(PinWAKE)
	assert.Equal(t, PinHigh, state)
}

func TestSimulatorThermalShutdown(t *testing.T) {
	sim := NewSimulator()
	powerUp(sim)

	assert.Nil(t, sim.SetJunctionTemp(170.0))
	sim.Step(time.Microsecond)
	assert.True(t, sim.GetFlags().TSD)

	assert.Nil(t, sim.SetJunctionTemp(120.0))
	sim.Step(time.Microsecond)
	assert.False(t, sim.GetFlags().TSD)
}

func TestSimulatorClampOnNormalEntry(t *testing.T) {
	sim := NewSimulator()
	sim.SetPin(PinTXD, PinLow, 0)
	powerUp(sim)

	assert.Equal(t, ModeNormal, sim.Mode())
	assert.True(t, sim.GetFlags().TXDCLP)
}

func TestSimulatorEvents(t *testing.T) {
	sim := NewSimulator()

	var modes []OperatingMode
	_, err := sim.RegisterCallback(EventModeChange, func(e Event) {
		modes = append(modes, e.NewMode)
	})
	assert.Nil(t, err)

	wakeups := 0
	sim.RegisterCallback(EventWakeUp, func(e Event) {
		assert.True(t, e.SourceLocal)
		wakeups++
	})

	var pinEvents []PinName
	sim.RegisterCallback(EventPinChange, func(e Event) {
		pinEvents = append(pinEvents, e.Pin)
	})

	powerUp(sim)
	assert.Equal(t, []OperatingMode{ModeNormal}, modes)
	assert.Contains(t, pinEvents, PinINH)

	sleep(sim)
	sim.SetPin(PinWAKE, PinHigh, 3.3)
	sim.Step(10 * time.Microsecond)
	assert.Equal(t, 1, wakeups)
}

func TestSimulatorUnregisterCallback(t *testing.T) {
	sim := NewSimulator()
	calls := 0
	id, _ := sim.RegisterCallback(EventModeChange, func(Event) { calls++ })
	assert.Nil(t, sim.UnregisterCallback(EventModeChange, id))
	powerUp(sim)
	assert.Equal(t, 0, calls)
}

func TestSimulatorResetPreservesCallbacks(t *testing.T) {
	sim := NewSimulator()
	calls := 0
	sim.RegisterCallback(EventModeChange, func(Event) { calls++ })

	powerUp(sim)
	assert.Equal(t, 1, calls)

	sim.Reset()
	assert.EqualValues(t, 0, sim.Now())
	assert.Equal(t, ModeOff, sim.Mode())

	powerUp(sim)
	assert.Equal(t, 2, calls)
}

func TestSimulatorConfigureAtomic(t *testing.T) {
	sim := NewSimulator()
	original := sim.Profile()

	bad := DefaultProfile()
	bad.Timing.UVFilter = time.Hour
	assert.NotNil(t, sim.Configure(bad))
	assert.Equal(t, original, sim.Profile())
}
