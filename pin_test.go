package tcansim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinDefaults(t *testing.T) {
	var bank pinBank
	bank.init()

	state, _, err := bank.get(PinTXD)
	assert.Nil(t, err)
	assert.Equal(t, PinHigh, state)

	state, _, err = bank.get(PinCANH)
	assert.Nil(t, err)
	assert.Equal(t, PinHighImpedance, state)

	state, voltage, err := bank.get(PinVSUP)
	assert.Nil(t, err)
	assert.Equal(t, PinAnalog, state)
	assert.Equal(t, 12.0, voltage)
}

func TestPinSetExternal(t *testing.T) {
	var bank pinBank
	bank.init()

	assert.Nil(t, bank.setExternal(PinEN, PinHigh, 3.3))
	state, voltage, _ := bank.get(PinEN)
	assert.Equal(t, PinHigh, state)
	assert.Equal(t, 3.3, voltage)

	// Output only pins are not externally settable.
	assert.Equal(t, ErrPinNotSettable, bank.setExternal(PinRXD, PinLow, 0))
	assert.Equal(t, ErrPinNotSettable, bank.setExternal(PinINH, PinHigh, 5.0))

	assert.Equal(t, ErrInvalidPin, bank.setExternal(PinName(PinCount), PinLow, 0))
}

func TestPinVoltageRange(t *testing.T) {
	var bank pinBank
	bank.init()

	// Out of range analog writes are rejected and the pin keeps its value.
	assert.Equal(t, ErrVoltageRange, bank.setExternal(PinVSUP, PinAnalog, 50.0))
	_, voltage, _ := bank.get(PinVSUP)
	assert.Equal(t, 12.0, voltage)

	assert.Equal(t, ErrVoltageRange, bank.setExternal(PinCANH, PinAnalog, -30.0))
	assert.Nil(t, bank.setExternal(PinCANH, PinAnalog, -27.0))

	// Digital writes at 0V bypass the range check, VSUP's interval starts
	// at 4.5V but a plain low level is still representable.
	assert.Nil(t, bank.setExternal(PinVSUP, PinLow, 0))
}

func TestPinInfo(t *testing.T) {
	var bank pinBank
	bank.init()

	info, err := bank.info(PinCANH)
	assert.Nil(t, err)
	assert.True(t, info.IsInput)
	assert.True(t, info.IsOutput)
	assert.Equal(t, -27.0, info.MinVoltage)
	assert.Equal(t, 42.0, info.MaxVoltage)

	info, err = bank.info(PinRXD)
	assert.Nil(t, err)
	assert.False(t, info.IsInput)
	assert.True(t, info.IsOutput)

	_, err = bank.info(PinName(200))
	assert.Equal(t, ErrInvalidPin, err)
}

func TestPinNameStrings(t *testing.T) {
	assert.Equal(t, "TXD", PinTXD.String())
	assert.Equal(t, "nSTB", PinNSTB.String())
	assert.Equal(t, "INH_MASK", PinINHMask.String())
	assert.Equal(t, "UNKNOWN", PinName(99).String())
}
