package tcansim

// snapshotVersion is bumped whenever the captured state shape changes, a
// restore across versions is rejected instead of misinterpreting fields.
const snapshotVersion = 1

// Snapshot is a fully independent value copy of a simulator's state,
// excluding event callback registrations. It shares no storage with the live
// simulator, mutating one never affects the other.
type Snapshot struct {
	version int

	timing  TimingEngine
	pins    [PinCount]Pin
	power   PowerState
	mode    ModeState
	can     CANTransceiver
	faults  FaultState
	wake    WakeState
	bias    BusBias
	inhibit InhibitState
	profile Profile
}

// Snapshot captures the complete simulator state by value.
func (s *Simulator) Snapshot() Snapshot {
	return Snapshot{
		version: snapshotVersion,
		timing:  s.timing,
		pins:    s.pins.pins,
		power:   s.power,
		mode:    s.mode,
		can:     s.can,
		faults:  s.faults,
		wake:    s.wake,
		bias:    s.bias,
		inhibit: s.inhibit,
		profile: s.profile,
	}
}

// Restore replaces the simulator state with the snapshot's. Callback
// registrations are untouched. A snapshot from a different state shape is
// rejected without modifying the simulator.
func (s *Simulator) Restore(snap Snapshot) error {
	if snap.version != snapshotVersion {
		return ErrSnapshotMismatch
	}
	s.timing = snap.timing
	s.pins.pins = snap.pins
	s.power = snap.power
	s.mode = snap.mode
	s.can = snap.can
	s.faults = snap.faults
	s.wake = snap.wake
	s.bias = snap.bias
	s.inhibit = snap.inhibit
	s.profile = snap.profile
	return nil
}
