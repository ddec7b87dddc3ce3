package tcansim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScenarioBuilder(t *testing.T) {
	sc := NewScenario("builder", "builder test")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3).
		AddWait("settle", time.Millisecond).
		AddCheckMode("still off", ModeOff).
		AddComment("done")
	assert.Len(t, sc.Actions, 4)
	assert.True(t, sc.StopOnError)
}

func TestScenarioFailedCheckStops(t *testing.T) {
	sim := NewSimulator()
	sc := NewScenario("failing", "check that cannot hold")
	sc.AddCheckMode("wrong mode", ModeNormal)
	sc.AddComment("never reached")

	result := sc.Execute(sim)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.FailedIndex)
	assert.NotEmpty(t, result.ErrMessage)
}

func TestScenarioContinueOnError(t *testing.T) {
	sim := NewSimulator()
	sc := NewScenario("tolerant", "keeps going past failures")
	sc.StopOnError = false
	sc.AddCheckMode("wrong mode", ModeNormal)
	sc.AddCheckMode("right mode", ModeOff)

	result := sc.Execute(sim)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Executed)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.FailedIndex)
}

func TestScenarioExecuteStep(t *testing.T) {
	sim := NewSimulator()
	sc := NewScenario("stepwise", "one action at a time")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddCheckMode("still off", ModeOff)

	result, more := sc.ExecuteStep(sim)
	assert.True(t, more)
	assert.True(t, result.Success)

	result, more = sc.ExecuteStep(sim)
	assert.True(t, more)
	assert.True(t, result.Success)

	_, more = sc.ExecuteStep(sim)
	assert.False(t, more)

	sc.Rewind()
	_, more = sc.ExecuteStep(sim)
	assert.True(t, more)
}

func TestScenarioWaitUntil(t *testing.T) {
	sim := NewSimulator()
	sc := NewScenario("wait-until", "bounded condition wait")
	sc.AddSetPin("EN high", PinEN, PinHigh, 3.3)
	sc.AddSetPin("nSTB high", PinNSTB, PinHigh, 3.3)
	sc.AddWaitUntil("reaches Normal", func(s *Simulator) bool {
		return s.Mode() == ModeNormal
	}, time.Millisecond)

	result := sc.Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
}

func TestScenarioPowerUp(t *testing.T) {
	sim := NewSimulator()
	result := PowerUpScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
	assert.Equal(t, ModeNormal, sim.Mode())
	assert.True(t, sim.GetFlags().PWRON)
}

func TestScenarioNormalToSleep(t *testing.T) {
	sim := NewSimulator()
	result := NormalToSleepScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
	assert.Equal(t, ModeSleep, sim.Mode())
}

func TestScenarioSleepToWake(t *testing.T) {
	sim := NewSimulator()
	result := SleepToWakeScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
	assert.Equal(t, ModeNormal, sim.Mode())
}

func TestScenarioMessageTransmission(t *testing.T) {
	sim := NewSimulator()
	result := MessageTransmissionScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
}

func TestScenarioTXDTimeout(t *testing.T) {
	sim := NewSimulator()
	result := TXDTimeoutFaultScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
	assert.True(t, sim.GetFlags().TXDDTO)
}

func TestScenarioUndervoltageRecovery(t *testing.T) {
	sim := NewSimulator()
	result := UndervoltageRecoveryScenario().Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/scenario_powerup.ini")
	assert.Nil(t, err)
	assert.Equal(t, "file-power-up", sc.Name)
	assert.True(t, sc.StopOnError)
	assert.Len(t, sc.Actions, 8)

	sim := NewSimulator()
	result := sc.Execute(sim)
	assert.True(t, result.Success, result.ErrMessage)
	assert.Equal(t, ModeNormal, sim.Mode())
}

func TestLoadScenarioUnknownAction(t *testing.T) {
	_, err := LoadScenario("testdata/scenario_bad_action.ini")
	assert.True(t, errors.Is(err, ErrScenarioFile))
}
