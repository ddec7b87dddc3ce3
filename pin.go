package tcansim

// PinName identifies one of the 14 device pins.
type PinName uint8

const (
	PinTXD     PinName = iota // transmit data input
	PinRXD                    // receive data output
	PinEN                     // enable input
	PinNSTB                   // standby control input, active low
	PinNFAULT                 // fault indication output, active low
	PinWAKE                   // local wake-up input
	PinINH                    // inhibit output
	PinINHMask                // INH mask control input
	PinCANH                   // CAN high line
	PinCANL                   // CAN low line
	PinVSUP                   // supply voltage
	PinVCC                    // logic supply voltage
	PinVIO                    // I/O supply voltage
	PinGND                    // ground
	PinCount = 14
)

func (p PinName) String() string {
	switch p {
	case PinTXD:
		return "TXD"
	case PinRXD:
		return "RXD"
	case PinEN:
		return "EN"
	case PinNSTB:
		return "nSTB"
	case PinNFAULT:
		return "nFAULT"
	case PinWAKE:
		return "WAKE"
	case PinINH:
		return "INH"
	case PinINHMask:
		return "INH_MASK"
	case PinCANH:
		return "CANH"
	case PinCANL:
		return "CANL"
	case PinVSUP:
		return "VSUP"
	case PinVCC:
		return "VCC"
	case PinVIO:
		return "VIO"
	case PinGND:
		return "GND"
	}
	return "UNKNOWN"
}

// PinState is the logical state of a pin.
type PinState uint8

const (
	PinLow PinState = iota
	PinHigh
	PinHighImpedance
	PinAnalog
)

func (s PinState) String() string {
	switch s {
	case PinLow:
		return "LOW"
	case PinHigh:
		return "HIGH"
	case PinHighImpedance:
		return "HIGH_Z"
	case PinAnalog:
		return "ANALOG"
	}
	return "UNKNOWN"
}

// Pin holds the electrical record of a single pin.
type Pin struct {
	State      PinState
	Voltage    float64
	IsInput    bool
	IsOutput   bool
	MinVoltage float64
	MaxVoltage float64
}

// PinValue pairs a pin with a state and voltage, for batch operations.
type PinValue struct {
	Pin     PinName
	State   PinState
	Voltage float64
}

// PinInfo describes a pin's direction capabilities and operating interval.
type PinInfo struct {
	IsInput    bool
	IsOutput   bool
	MinVoltage float64
	MaxVoltage float64
}

// pinBank owns the 14 pins of the device.
type pinBank struct {
	pins [PinCount]Pin
}

// Per-pin operating voltage intervals, from the device datasheet.
var pinVoltageRanges = [PinCount]struct{ min, max float64 }{
	PinTXD:     {0.0, 5.5},
	PinRXD:     {0.0, 5.5},
	PinEN:      {0.0, 5.5},
	PinNSTB:    {0.0, 5.5},
	PinNFAULT:  {0.0, 5.5},
	PinWAKE:    {0.0, 5.5},
	PinINH:     {0.0, 42.0},
	PinINHMask: {0.0, 5.5},
	PinCANH:    {-27.0, 42.0},
	PinCANL:    {-27.0, 42.0},
	PinVSUP:    {4.5, 42.0},
	PinVCC:     {4.5, 5.5},
	PinVIO:     {1.65, 5.5},
	PinGND:     {0.0, 0.0},
}

var pinDirections = [PinCount]struct{ input, output bool }{
	PinTXD:     {true, false},
	PinRXD:     {false, true},
	PinEN:      {true, false},
	PinNSTB:    {true, false},
	PinNFAULT:  {false, true},
	PinWAKE:    {true, false},
	PinINH:     {false, true},
	PinINHMask: {true, false},
	PinCANH:    {true, true},
	PinCANL:    {true, true},
	PinVSUP:    {true, false},
	PinVCC:     {true, false},
	PinVIO:     {true, false},
	PinGND:     {true, false},
}

func (b *pinBank) init() {
	for i := 0; i < PinCount; i++ {
		b.pins[i] = Pin{
			State:      PinLow,
			Voltage:    0.0,
			IsInput:    pinDirections[i].input,
			IsOutput:   pinDirections[i].output,
			MinVoltage: pinVoltageRanges[i].min,
			MaxVoltage: pinVoltageRanges[i].max,
		}
	}

	// Device specific defaults. TXD and RXD idle recessive (high), nFAULT
	// inactive (high), INH and the bus lines start high impedance.
	b.pins[PinTXD].State = PinHigh
	b.pins[PinRXD].State = PinHigh
	b.pins[PinNFAULT].State = PinHigh
	b.pins[PinINH].State = PinHighImpedance
	b.pins[PinCANH].State = PinHighImpedance
	b.pins[PinCANL].State = PinHighImpedance

	// Supply rails start at nominal levels.
	b.pins[PinVSUP].State = PinAnalog
	b.pins[PinVSUP].Voltage = 12.0
	b.pins[PinVCC].State = PinAnalog
	b.pins[PinVCC].Voltage = 5.0
	b.pins[PinVIO].State = PinAnalog
	b.pins[PinVIO].Voltage = 3.3
	b.pins[PinGND].State = PinAnalog
	b.pins[PinGND].Voltage = 0.0
}

// validVoltage reports whether voltage is acceptable for this pin when
// written with the given state. Digital writes at 0 V are accepted without a
// range check, logic levels do not need a literal voltage to be valid.
func (p *Pin) validVoltage(state PinState, voltage float64) bool {
	if state != PinAnalog && voltage == 0.0 {
		return true
	}
	return voltage >= p.MinVoltage && voltage <= p.MaxVoltage
}

// set writes a pin record after validating the voltage. Used internally for
// both input and output pins. The pin is left untouched on rejection.
func (b *pinBank) set(name PinName, state PinState, voltage float64) error {
	if int(name) >= PinCount {
		return ErrInvalidPin
	}
	p := &b.pins[name]
	if !p.validVoltage(state, voltage) {
		return ErrVoltageRange
	}
	p.State = state
	p.Voltage = voltage
	return nil
}

// setExternal is the caller facing write path. Output only pins are
// rejected.
func (b *pinBank) setExternal(name PinName, state PinState, voltage float64) error {
	if int(name) >= PinCount {
		return ErrInvalidPin
	}
	if !b.pins[name].IsInput {
		return ErrPinNotSettable
	}
	return b.set(name, state, voltage)
}

func (b *pinBank) get(name PinName) (PinState, float64, error) {
	if int(name) >= PinCount {
		return PinLow, 0, ErrInvalidPin
	}
	p := &b.pins[name]
	return p.State, p.Voltage, nil
}

func (b *pinBank) info(name PinName) (PinInfo, error) {
	if int(name) >= PinCount {
		return PinInfo{}, ErrInvalidPin
	}
	p := &b.pins[name]
	return PinInfo{
		IsInput:    p.IsInput,
		IsOutput:   p.IsOutput,
		MinVoltage: p.MinVoltage,
		MaxVoltage: p.MaxVoltage,
	}, nil
}
