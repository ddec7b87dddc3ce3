package tcansim

import (
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// ActionType is the kind of a scenario action.
type ActionType uint8

const (
	ActionSetPin ActionType = iota
	ActionWait
	ActionWaitUntil
	ActionCheckPin
	ActionCheckMode
	ActionCheckFlag
	ActionConfigure
	ActionComment
)

// Action is a single scripted step of a scenario. Only the fields relevant
// to the action type are used.
type Action struct {
	Type        ActionType
	Description string

	// ActionSetPin
	Pin     PinName
	State   PinState
	Voltage float64

	// ActionWait, ActionWaitUntil
	Duration  time.Duration
	Condition func(*Simulator) bool

	// ActionCheckPin
	ExpectedState    PinState
	ExpectedVoltage  float64
	VoltageTolerance float64

	// ActionCheckMode
	ExpectedMode OperatingMode

	// ActionCheckFlag
	Flag     Flag
	Expected bool

	// ActionConfigure
	Profile Profile
}

// Scenario is an ordered list of actions replayed against a simulator, used
// for regression testing mode transitions, faults and wake-up sequences.
type Scenario struct {
	Name        string
	Description string
	Actions     []Action
	StopOnError bool

	current int
}

// Result summarizes a scenario run.
type Result struct {
	Success     bool
	Executed    int
	Passed      int
	Failed      int
	ErrMessage  string
	FailedIndex int
}

// NewScenario creates an empty scenario that stops at the first failed
// check.
func NewScenario(name, description string) *Scenario {
	return &Scenario{Name: name, Description: description, StopOnError: true}
}

// Rewind restarts step-wise execution from the first action.
func (sc *Scenario) Rewind() {
	sc.current = 0
}

func (sc *Scenario) add(a Action) *Scenario {
	sc.Actions = append(sc.Actions, a)
	return sc
}

// AddSetPin appends an input pin write.
func (sc *Scenario) AddSetPin(desc string, pin PinName, state PinState, voltage float64) *Scenario {
	return sc.add(Action{Type: ActionSetPin, Description: desc, Pin: pin, State: state, Voltage: voltage})
}

// AddWait appends a plain time advance.
func (sc *Scenario) AddWait(desc string, d time.Duration) *Scenario {
	return sc.add(Action{Type: ActionWait, Description: desc, Duration: d})
}

// AddWaitUntil appends a bounded wait for a condition over simulator state.
func (sc *Scenario) AddWaitUntil(desc string, cond func(*Simulator) bool, timeout time.Duration) *Scenario {
	return sc.add(Action{Type: ActionWaitUntil, Description: desc, Condition: cond, Duration: timeout})
}

// AddCheckPin appends a pin state and voltage assertion.
func (sc *Scenario) AddCheckPin(desc string, pin PinName, state PinState, voltage, tolerance float64) *Scenario {
	return sc.add(Action{
		Type: ActionCheckPin, Description: desc, Pin: pin,
		ExpectedState: state, ExpectedVoltage: voltage, VoltageTolerance: tolerance,
	})
}

// AddCheckMode appends an operating mode assertion.
func (sc *Scenario) AddCheckMode(desc string, mode OperatingMode) *Scenario {
	return sc.add(Action{Type: ActionCheckMode, Description: desc, ExpectedMode: mode})
}

// AddCheckFlag appends a status flag assertion.
func (sc *Scenario) AddCheckFlag(desc string, flag Flag, expected bool) *Scenario {
	return sc.add(Action{Type: ActionCheckFlag, Description: desc, Flag: flag, Expected: expected})
}

// AddConfigure appends a full profile configuration.
func (sc *Scenario) AddConfigure(desc string, p Profile) *Scenario {
	return sc.add(Action{Type: ActionConfigure, Description: desc, Profile: p})
}

// AddComment appends a documentation no-op.
func (sc *Scenario) AddComment(text string) *Scenario {
	return sc.add(Action{Type: ActionComment, Description: text})
}

// runAction executes one action and reports whether it passed and, for
// failed checks, why.
func runAction(sim *Simulator, a Action) (bool, string) {
	switch a.Type {
	case ActionSetPin:
		if err := sim.SetPin(a.Pin, a.State, a.Voltage); err != nil {
			return false, fmt.Sprintf("set pin %v: %v", a.Pin, err)
		}
	case ActionWait:
		sim.Step(a.Duration)
	case ActionWaitUntil:
		if !sim.RunUntil(a.Condition, a.Duration) {
			return false, fmt.Sprintf("condition not met within %v", a.Duration)
		}
	case ActionCheckPin:
		state, voltage, err := sim.GetPin(a.Pin)
		if err != nil {
			return false, fmt.Sprintf("get pin %v: %v", a.Pin, err)
		}
		if state != a.ExpectedState {
			return false, fmt.Sprintf("pin %v state %v, expected %v", a.Pin, state, a.ExpectedState)
		}
		if math.Abs(voltage-a.ExpectedVoltage) > a.VoltageTolerance {
			return false, fmt.Sprintf("pin %v voltage %.3fV, expected %.3fV +/- %.3fV",
				a.Pin, voltage, a.ExpectedVoltage, a.VoltageTolerance)
		}
	case ActionCheckMode:
		if mode := sim.Mode(); mode != a.ExpectedMode {
			return false, fmt.Sprintf("mode %v, expected %v", mode, a.ExpectedMode)
		}
	case ActionCheckFlag:
		if got := sim.GetFlags().Get(a.Flag); got != a.Expected {
			return false, fmt.Sprintf("flag %v is %v, expected %v", a.Flag, got, a.Expected)
		}
	case ActionConfigure:
		if err := sim.Configure(a.Profile); err != nil {
			return false, fmt.Sprintf("configure: %v", err)
		}
	case ActionComment:
		// Documentation only.
	}
	return true, ""
}

// Execute runs the remaining actions against the simulator.
func (sc *Scenario) Execute(sim *Simulator) Result {
	result := Result{Success: true, FailedIndex: -1}
	log.Infof("[SCENARIO] %s: %s", sc.Name, sc.Description)

	for sc.current < len(sc.Actions) {
		i := sc.current
		a := sc.Actions[i]
		sc.current++
		result.Executed++

		ok, msg := runAction(sim, a)
		if ok {
			result.Passed++
			continue
		}
		result.Failed++
		if result.Success {
			result.Success = false
			result.ErrMessage = msg
			result.FailedIndex = i
		}
		log.Warnf("[SCENARIO] %s: action %d (%s) failed: %s", sc.Name, i, a.Description, msg)
		if sc.StopOnError {
			break
		}
	}
	if result.Success {
		log.Infof("[SCENARIO] %s: %d actions passed", sc.Name, result.Passed)
	}
	return result
}

// ExecuteStep runs the next single action, for interactive drivers.
func (sc *Scenario) ExecuteStep(sim *Simulator) (Result, bool) {
	if sc.current >= len(sc.Actions) {
		return Result{Success: true, FailedIndex: -1}, false
	}
	i := sc.current
	a := sc.Actions[i]
	sc.current++

	ok, msg := runAction(sim, a)
	result := Result{Success: ok, Executed: 1, FailedIndex: -1}
	if ok {
		result.Passed = 1
	} else {
		result.Failed = 1
		result.ErrMessage = msg
		result.FailedIndex = i
	}
	return result, true
}

// PowerUpScenario brings the device from cold to Normal mode.
func PowerUpScenario() *Scenario {
	sc := NewScenario("power-up", "cold start to Normal mode")
	sc.AddComment("apply nominal supplies and enable the device")
	sc.AddSetPin("VSUP nominal", PinVSUP, PinAnalog, 12.0)
	sc.AddSetPin("VCC nominal", PinVCC, PinAnalog, 5.0)
	sc.AddSetPin("VIO nominal", PinVIO, PinAnalog, 3.3)
	sc.AddWait("supply settle", 340*time.Microsecond)
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddWait("mode transition", 200*time.Microsecond)
	sc.AddCheckMode("device in Normal", ModeNormal)
	sc.AddCheckFlag("power-on latched", FlagPWRON, true)
	return sc
}

// NormalToSleepScenario drives the device from Normal through GoToSleep into
// Sleep.
func NormalToSleepScenario() *Scenario {
	sc := NewScenario("normal-to-sleep", "Normal mode to Sleep via the silence timeout")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddWait("device to Normal", 10*time.Microsecond)
	sc.AddCheckMode("device in Normal", ModeNormal)
	sc.AddSetPin("nSTB low", PinNSTB, PinLow, 0)
	sc.AddWait("commit go-to-sleep", 10*time.Microsecond)
	sc.AddCheckMode("transitional state", ModeGoToSleep)
	sc.AddWait("silence timeout", SilenceTimeoutMax)
	sc.AddCheckMode("device asleep", ModeSleep)
	return sc
}

// SleepToWakeScenario wakes a sleeping device with a local WAKE edge and
// returns it to Normal mode.
func SleepToWakeScenario() *Scenario {
	sc := NewScenario("sleep-to-wake", "local wake-up from Sleep back to Normal")
	sc.AddComment("reach Sleep first, then wake via the local pin")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddWait("device to Normal", 10*time.Microsecond)
	sc.AddSetPin("nSTB low", PinNSTB, PinLow, 0)
	sc.AddWait("commit go-to-sleep", 10*time.Microsecond)
	sc.AddWait("silence timeout", SilenceTimeoutMax)
	sc.AddCheckMode("device asleep", ModeSleep)
	sc.AddSetPin("WAKE edge", PinWAKE, PinHigh, 3.3)
	sc.AddWait("edge sampled", 10*time.Microsecond)
	sc.AddCheckFlag("wake request latched", FlagWAKERQ, true)
	sc.AddCheckMode("woken into Standby", ModeStandby)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddWait("mode transition", 200*time.Microsecond)
	sc.AddCheckMode("back in Normal", ModeNormal)
	sc.AddCheckFlag("wake request consumed", FlagWAKERQ, false)
	return sc
}

// MessageTransmissionScenario toggles TXD in Normal mode and checks the
// receive path follows.
func MessageTransmissionScenario() *Scenario {
	sc := NewScenario("message-transmission", "TXD drive reflected on RXD through the bus")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddWait("device to Normal", 10*time.Microsecond)
	sc.AddWait("transceiver active", 10*time.Microsecond)
	sc.AddSetPin("TXD dominant", PinTXD, PinLow, 0)
	sc.AddWait("propagation", time.Microsecond)
	sc.AddCheckPin("RXD follows dominant", PinRXD, PinLow, 0, 0.1)
	sc.AddSetPin("TXD recessive", PinTXD, PinHigh, 3.3)
	sc.AddWait("propagation", time.Microsecond)
	sc.AddCheckPin("RXD follows recessive", PinRXD, PinHigh, 3.3, 0.1)
	return sc
}

// TXDTimeoutFaultScenario holds TXD dominant until the timeout fault
// latches.
func TXDTimeoutFaultScenario() *Scenario {
	sc := NewScenario("txd-timeout", "TXD dominant timeout fault detection")
	sc.AddSetPin("TXD stuck dominant", PinTXD, PinLow, 0)
	sc.AddWait("dominant sampled", 10*time.Microsecond)
	sc.AddWait("past the dominant timeout", 5*time.Millisecond)
	sc.AddCheckFlag("timeout fault latched", FlagTXDDTO, true)
	sc.AddCheckPin("nFAULT asserted", PinNFAULT, PinLow, 0, 0.1)
	return sc
}

// UndervoltageRecoveryScenario dips VSUP below the falling threshold and
// restores it.
func UndervoltageRecoveryScenario() *Scenario {
	sc := NewScenario("undervoltage-recovery", "VSUP dip into Off mode and back")
	sc.AddConfigure("VSUP collapsed", Profile{
		VSUP: 3.0, VCC: 5.0, VIO: 3.3,
		JunctionTemp: 25.0, LoadResistance: 60.0, LoadCapacitance: 100e-12,
		Timing: DefaultTimingParams(),
	})
	sc.AddWait("undervoltage reaction", 10*time.Microsecond)
	sc.AddCheckFlag("UVSUP asserted", FlagUVSUP, true)
	sc.AddCheckMode("device off", ModeOff)
	sc.AddConfigure("VSUP restored", DefaultProfile())
	sc.AddWait("recovery", 10*time.Microsecond)
	sc.AddCheckFlag("UVSUP released", FlagUVSUP, false)
	sc.AddCheckFlag("power-on latched again", FlagPWRON, true)
	return sc
}

// parse helpers for scenario files.

func parsePinName(s string) (PinName, bool) {
	for p := PinName(0); p < PinCount; p++ {
		if strings.EqualFold(p.String(), s) {
			return p, true
		}
	}
	return 0, false
}

func parsePinState(s string) (PinState, bool) {
	switch strings.ToUpper(s) {
	case "LOW":
		return PinLow, true
	case "HIGH":
		return PinHigh, true
	case "HIGH_Z":
		return PinHighImpedance, true
	case "ANALOG":
		return PinAnalog, true
	}
	return 0, false
}

func parseMode(s string) (OperatingMode, bool) {
	for m := ModeNormal; m <= ModeOff; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, true
		}
	}
	return 0, false
}

// LoadScenario reads a scenario from an INI file. The [scenario] section
// carries the metadata, each [action.N] section one action in order.
func LoadScenario(filePath string) (*Scenario, error) {
	cfg, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	meta := cfg.Section("scenario")
	sc := NewScenario(meta.Key("name").String(), meta.Key("description").String())
	sc.StopOnError = meta.Key("stop_on_error").MustBool(true)

	for i := 0; ; i++ {
		name := fmt.Sprintf("action.%d", i)
		if !cfg.HasSection(name) {
			break
		}
		sec := cfg.Section(name)
		desc := sec.Key("description").String()

		switch kind := sec.Key("type").String(); kind {
		case "set_pin":
			pin, ok := parsePinName(sec.Key("pin").String())
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown pin %q", ErrScenarioFile, name, sec.Key("pin").String())
			}
			state, ok := parsePinState(sec.Key("state").String())
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown state %q", ErrScenarioFile, name, sec.Key("state").String())
			}
			sc.AddSetPin(desc, pin, state, sec.Key("voltage").MustFloat64(0))
		case "wait":
			us := sec.Key("duration_us").MustFloat64(0)
			sc.AddWait(desc, time.Duration(us*float64(time.Microsecond)))
		case "check_pin":
			pin, ok := parsePinName(sec.Key("pin").String())
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown pin %q", ErrScenarioFile, name, sec.Key("pin").String())
			}
			state, ok := parsePinState(sec.Key("state").String())
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown state %q", ErrScenarioFile, name, sec.Key("state").String())
			}
			sc.AddCheckPin(desc, pin, state,
				sec.Key("voltage").MustFloat64(0), sec.Key("tolerance").MustFloat64(0.1))
		case "check_mode":
			mode, ok := parseMode(sec.Key("mode").String())
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown mode %q", ErrScenarioFile, name, sec.Key("mode").String())
			}
			sc.AddCheckMode(desc, mode)
		case "check_flag":
			flag, ok := FlagByName(strings.ToUpper(sec.Key("flag").String()))
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown flag %q", ErrScenarioFile, name, sec.Key("flag").String())
			}
			sc.AddCheckFlag(desc, flag, sec.Key("expected").MustBool(true))
		case "comment":
			sc.AddComment(desc)
		default:
			return nil, fmt.Errorf("%w: %s: unknown action type %q", ErrScenarioFile, name, kind)
		}
	}
	log.Infof("[SCENARIO] loaded %q with %d actions from %v", sc.Name, len(sc.Actions), filePath)
	return sc, nil
}
