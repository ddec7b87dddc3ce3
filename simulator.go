package tcansim

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// runUntilQuantum is the fixed step size used by RunUntil.
const runUntilQuantum = time.Microsecond

// Simulator is the aggregate root: it owns the 14 pins, every component
// state machine, the configuration and the simulated clock. It is advanced
// only by explicit Step calls, there is no background activity and no
// locking, a Simulator must not be shared across goroutines.
type Simulator struct {
	timing  TimingEngine
	pins    pinBank
	power   PowerState
	mode    ModeState
	can     CANTransceiver
	faults  FaultState
	wake    WakeState
	bias    BusBias
	inhibit InhibitState

	profile Profile

	registry eventRegistry
}

// NewSimulator creates a simulator in the power-on-reset state with the
// default profile.
func NewSimulator() *Simulator {
	sim := &Simulator{}
	sim.Reset()
	return sim
}

// Reset returns every component to its power-on default and restores the
// default profile. Registered event callbacks are preserved.
func (s *Simulator) Reset() {
	s.timing = TimingEngine{}
	s.pins.init()
	s.power = resetPower()
	s.mode = resetMode()
	s.can = resetTransceiver()
	s.faults = resetFaults()
	s.wake = resetWake()
	s.bias = resetBias()
	s.inhibit = resetInhibit()
	s.profile = DefaultProfile()
	log.Debugf("[SIM] reset to power-on defaults")
}

// Now returns the current simulated time.
func (s *Simulator) Now() time.Duration {
	return s.timing.Now()
}

// Mode returns the current operating mode.
func (s *Simulator) Mode() OperatingMode {
	return s.mode.Current
}

// PreviousMode returns the mode before the last committed transition.
func (s *Simulator) PreviousMode() OperatingMode {
	return s.mode.Previous
}

// TransceiverState returns the internal state of the CAN block.
func (s *Simulator) TransceiverState() TransceiverState {
	return s.can.State
}

// GetFlags returns a readout of all twelve status flags.
func (s *Simulator) GetFlags() Flags {
	return Flags{
		PWRON:  s.power.PWRONFlag,
		WAKERQ: s.wake.WAKERQFlag,
		WAKESR: s.wake.WAKESRFlag,
		UVSUP:  s.power.UVSUPFlag,
		UVCC:   s.power.UVCCFlag,
		UVIO:   s.power.UVIOFlag,
		CBF:    s.faults.CBFFlag,
		TXDCLP: s.faults.TXDCLPFlag,
		TXDDTO: s.faults.TXDDTOFlag,
		TXDRXD: s.faults.TXDRXDFlag,
		CANDOM: s.faults.CANDOMFlag,
		TSD:    s.faults.TSDFlag,
	}
}

// SetPin sets a single input pin. Writing a supply rail pin also updates the
// configured rail voltage, the monitor always sees what the pin carries.
func (s *Simulator) SetPin(name PinName, state PinState, voltage float64) error {
	if err := s.pins.setExternal(name, state, voltage); err != nil {
		return err
	}
	switch name {
	case PinVSUP:
		s.profile.VSUP = voltage
	case PinVCC:
		s.profile.VCC = voltage
	case PinVIO:
		s.profile.VIO = voltage
	}
	return nil
}

// GetPin returns the state and voltage of any pin.
func (s *Simulator) GetPin(name PinName) (PinState, float64, error) {
	return s.pins.get(name)
}

// SetPins applies a batch of pin writes. Every write is attempted, the first
// rejection is reported.
func (s *Simulator) SetPins(values []PinValue) error {
	var firstErr error
	for _, v := range values {
		if err := s.SetPin(v.Pin, v.State, v.Voltage); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetPins reads a batch of pins.
func (s *Simulator) GetPins(names []PinName) ([]PinValue, error) {
	values := make([]PinValue, 0, len(names))
	for _, name := range names {
		state, voltage, err := s.pins.get(name)
		if err != nil {
			return nil, err
		}
		values = append(values, PinValue{Pin: name, State: state, Voltage: voltage})
	}
	return values, nil
}

// PinInfo returns direction capabilities and the valid voltage interval of a
// pin.
func (s *Simulator) PinInfo(name PinName) (PinInfo, error) {
	return s.pins.info(name)
}

// SetSupplyVoltages configures the three rails. The values are range
// validated together, a rejected call leaves the previous configuration
// untouched. Rail pins are mirrored when the value fits the pin's electrical
// interval.
func (s *Simulator) SetSupplyVoltages(vsup, vcc, vio float64) error {
	if err := ValidateSupplies(vsup, vcc, vio); err != nil {
		return err
	}
	s.profile.VSUP = vsup
	s.profile.VCC = vcc
	s.profile.VIO = vio
	s.mirrorRailPin(PinVSUP, vsup)
	s.mirrorRailPin(PinVCC, vcc)
	s.mirrorRailPin(PinVIO, vio)
	return nil
}

// mirrorRailPin reflects a configured rail voltage onto its pin. A value
// outside the pin's electrical interval (an undervoltage experiment) leaves
// the pin record as is, the monitor reads the configured value regardless.
func (s *Simulator) mirrorRailPin(name PinName, voltage float64) {
	_ = s.pins.set(name, PinAnalog, voltage)
}

// SetJunctionTemp configures the junction temperature.
func (s *Simulator) SetJunctionTemp(tj float64) error {
	if err := ValidateJunctionTemp(tj); err != nil {
		return err
	}
	s.profile.JunctionTemp = tj
	return nil
}

// SetBusLoad configures the bus load resistance and capacitance.
func (s *Simulator) SetBusLoad(resistance, capacitance float64) error {
	if resistance < 0 || capacitance < 0 {
		return ErrInvalidConfig
	}
	s.profile.LoadResistance = resistance
	s.profile.LoadCapacitance = capacitance
	return nil
}

// SetTimingParams replaces the six timing windows after validating all of
// them.
func (s *Simulator) SetTimingParams(p TimingParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.profile.Timing = p
	return nil
}

// TimingParams returns the configured timing windows.
func (s *Simulator) TimingParams() TimingParams {
	return s.profile.Timing
}

// Configure applies a whole profile atomically. Invalid profiles are
// rejected with the previous configuration retained.
func (s *Simulator) Configure(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.profile = p
	s.mirrorRailPin(PinVSUP, p.VSUP)
	s.mirrorRailPin(PinVCC, p.VCC)
	s.mirrorRailPin(PinVIO, p.VIO)
	return nil
}

// Profile returns the current configuration.
func (s *Simulator) Profile() Profile {
	return s.profile
}

// RegisterCallback attaches a callback to an event category. Multiple
// independent registrations per category are supported, each identified by
// the returned id.
func (s *Simulator) RegisterCallback(t EventType, cb EventCallback) (CallbackID, error) {
	return s.registry.register(t, cb)
}

// UnregisterCallback removes a single registration by identity.
func (s *Simulator) UnregisterCallback(t EventType, id CallbackID) error {
	return s.registry.unregister(t, id)
}

// Step advances the simulation by delta and evaluates every component once,
// in the fixed order the device logic requires: power, wake (previous bus
// state), mode, transceiver state machine and bias, mode entry faults,
// inhibit, bus drive, bus decode, delayed RXD, fault checks, output pins.
func (s *Simulator) Step(delta time.Duration) {
	before := s.observe()

	// Pin changes seen by this tick happened at the pre-advance instant,
	// scheduling is relative to it.
	scheduleTime := s.timing.Now()
	s.timing.Advance(delta)
	now := s.timing.Now()

	txdState, _, _ := s.pins.get(PinTXD)
	enState, _, _ := s.pins.get(PinEN)
	nstbState, _, _ := s.pins.get(PinNSTB)
	wakeState, _, _ := s.pins.get(PinWAKE)
	maskState, _, _ := s.pins.get(PinINHMask)

	txdLow := txdState == PinLow
	enHigh := enState == PinHigh
	nstbHigh := nstbState == PinHigh
	wakePinHigh := wakeState == PinHigh
	maskHigh := maskState == PinHigh

	// The monitor reads the configured rail voltages, which track the rail
	// pins whenever those are electrically representable.
	vsup := s.profile.VSUP
	vcc := s.profile.VCC
	vio := s.profile.VIO

	s.power.Update(vsup, vcc, vio, now, s.profile.Timing.UVFilter)
	supplyValid := s.power.VSUPValid()

	// Wake detection and the state machines act on the bus as it was at the
	// end of the previous tick, not on what this tick is about to drive.
	_, canhPrev, _ := s.pins.get(PinCANH)
	_, canlPrev, _ := s.pins.get(PinCANL)
	busPrev := DecodeBusState(canhPrev - canlPrev)

	s.wake.Update(busPrev, wakePinHigh, s.mode.Current, now,
		s.profile.Timing.WakeFilter, s.profile.Timing.WakeTimeout)
	wakeRequested := s.wake.WAKERQFlag

	oldMode := s.mode.Current
	newMode := s.mode.Update(enHigh, nstbHigh, supplyValid, wakeRequested,
		now, s.profile.Timing.SilenceTimeout)

	// The wake-up entry into Normal consumes the latched wake and power-on
	// flags. A direct power-up entry keeps PWRON observable.
	if newMode == ModeNormal && oldMode == ModeStandby {
		s.power.ClearPWRON()
		s.wake.ClearFlags()
	}

	s.can.UpdateStateMachine(newMode, busPrev, supplyValid, now,
		s.profile.Timing.SilenceTimeout)
	s.bias.Update(s.can.State, busPrev, now)

	if newMode == ModeNormal && oldMode != ModeNormal {
		s.faults.CheckTXDCLP(txdLow, newMode)
	}

	s.inhibit.Update(newMode, maskHigh, wakeRequested, vsup, now)

	// Drive the bus from TXD, or fall back to the bias network.
	if s.can.DriverEnabled && !s.faults.ShouldDisableDriver() {
		canh, canl := s.can.DriveBus(txdLow)
		s.pins.set(PinCANH, PinAnalog, canh)
		s.pins.set(PinCANL, PinAnalog, canl)
	} else {
		canh, canl := s.bias.Bias(vcc)
		if s.bias.State != BiasOff {
			s.pins.set(PinCANH, PinAnalog, canh)
			s.pins.set(PinCANL, PinAnalog, canl)
		} else {
			s.pins.set(PinCANH, PinHighImpedance, 0)
			s.pins.set(PinCANL, PinHighImpedance, 0)
		}
	}

	// Read the bus back after driving and decode it.
	_, canhNow, _ := s.pins.get(PinCANH)
	_, canlNow, _ := s.pins.get(PinCANL)
	busState := DecodeBusState(canhNow - canlNow)

	s.can.UpdateRXD(busState, now, scheduleTime)
	rxdHigh := s.can.RXDOutput

	s.faults.Update(txdLow, !rxdHigh, busState, s.profile.JunctionTemp, now,
		newMode, s.profile.Timing.TXDDominantTimeout, s.profile.Timing.BusDominantTimeout)

	// Remaining output pins.
	if rxdHigh {
		s.pins.set(PinRXD, PinHigh, vio)
	} else {
		s.pins.set(PinRXD, PinLow, 0)
	}

	nfaultLow := s.faults.NFAULTActive() || wakeRequested
	if nfaultLow {
		s.pins.set(PinNFAULT, PinLow, 0)
	} else {
		s.pins.set(PinNFAULT, PinHigh, vio)
	}

	inhState, inhVoltage := s.inhibit.PinState()
	s.pins.set(PinINH, inhState, inhVoltage)

	s.publish(before, now)
}

// RunUntil repeatedly steps the simulation by a 1us quantum until the
// condition holds or the timeout elapses. Fully deterministic, the condition
// is re-polled after every quantum and once more after the timeout.
func (s *Simulator) RunUntil(condition func(*Simulator) bool, timeout time.Duration) bool {
	if condition == nil {
		return false
	}
	start := s.timing.Now()
	for s.timing.Now()-start < timeout {
		if condition(s) {
			return true
		}
		s.Step(runUntilQuantum)
	}
	return condition(s)
}

// observation is the set of externally visible values compared across a step
// to publish events.
type observation struct {
	mode  OperatingMode
	flags Flags
	pins  [PinCount]Pin
}

func (s *Simulator) observe() observation {
	return observation{
		mode:  s.mode.Current,
		flags: s.GetFlags(),
		pins:  s.pins.pins,
	}
}

var faultFlags = [...]Flag{FlagCBF, FlagTXDCLP, FlagTXDDTO, FlagTXDRXD, FlagCANDOM, FlagTSD}

// publish fires events for every observable change during the step.
func (s *Simulator) publish(before observation, now time.Duration) {
	after := s.observe()

	if after.mode != before.mode {
		s.registry.fire(Event{
			Type:      EventModeChange,
			Timestamp: now,
			OldMode:   before.mode,
			NewMode:   after.mode,
		})
	}

	if after.flags.WAKERQ && !before.flags.WAKERQ {
		s.registry.fire(Event{
			Type:        EventWakeUp,
			Timestamp:   now,
			SourceLocal: s.wake.SourceLocal,
		})
	}

	for _, f := range faultFlags {
		if after.flags.Get(f) != before.flags.Get(f) {
			s.registry.fire(Event{
				Type:      EventFaultDetected,
				Timestamp: now,
				Flag:      f,
				IsSet:     after.flags.Get(f),
			})
		}
	}

	for f := Flag(0); f < flagCount; f++ {
		if after.flags.Get(f) != before.flags.Get(f) {
			s.registry.fire(Event{
				Type:      EventFlagChange,
				Timestamp: now,
				Flag:      f,
				IsSet:     after.flags.Get(f),
			})
		}
	}

	for i := 0; i < PinCount; i++ {
		if after.pins[i].State != before.pins[i].State ||
			after.pins[i].Voltage != before.pins[i].Voltage {
			s.registry.fire(Event{
				Type:       EventPinChange,
				Timestamp:  now,
				Pin:        PinName(i),
				OldState:   before.pins[i].State,
				NewState:   after.pins[i].State,
				OldVoltage: before.pins[i].Voltage,
				NewVoltage: after.pins[i].Voltage,
			})
		}
	}
}
