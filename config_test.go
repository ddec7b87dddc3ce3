package tcansim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTimingParamsValid(t *testing.T) {
	p := DefaultTimingParams()
	assert.Nil(t, p.Validate())
	assert.Equal(t, 225*time.Millisecond, p.UVFilter)
	assert.Equal(t, 2500*time.Microsecond, p.TXDDominantTimeout)
	assert.Equal(t, 2600*time.Microsecond, p.BusDominantTimeout)
	assert.Equal(t, 1150*time.Nanosecond, p.WakeFilter)
	assert.Equal(t, 1400*time.Microsecond, p.WakeTimeout)
	assert.Equal(t, 900*time.Millisecond, p.SilenceTimeout)
}

func TestTimingParamsValidation(t *testing.T) {
	p := DefaultTimingParams()
	p.UVFilter = 50 * time.Millisecond
	err := p.Validate()
	assert.True(t, errors.Is(err, ErrInvalidTiming))

	p = DefaultTimingParams()
	p.WakeFilter = 2 * time.Microsecond
	assert.True(t, errors.Is(p.Validate(), ErrInvalidTiming))

	p = DefaultTimingParams()
	p.SilenceTimeout = 2 * time.Second
	assert.True(t, errors.Is(p.Validate(), ErrInvalidTiming))
}

func TestDefaultProfileValid(t *testing.T) {
	p := DefaultProfile()
	assert.Nil(t, p.Validate())
	assert.Equal(t, 12.0, p.VSUP)
	assert.Equal(t, 5.0, p.VCC)
	assert.Equal(t, 3.3, p.VIO)
}

func TestProfileValidation(t *testing.T) {
	p := DefaultProfile()
	p.VSUP = 45.0
	assert.True(t, errors.Is(p.Validate(), ErrInvalidConfig))

	p = DefaultProfile()
	p.JunctionTemp = 250.0
	assert.True(t, errors.Is(p.Validate(), ErrInvalidConfig))

	p = DefaultProfile()
	p.LoadResistance = -1.0
	assert.True(t, errors.Is(p.Validate(), ErrInvalidConfig))

	// Supplies at zero are a representable experiment, not an error.
	p = DefaultProfile()
	p.VSUP = 0
	p.VCC = 0
	p.VIO = 0
	assert.Nil(t, p.Validate())
}

func TestLoadProfile(t *testing.T) {
	profile, err := LoadProfile("testdata/profile.ini")
	assert.Nil(t, err)
	assert.Equal(t, 24.0, profile.VSUP)
	assert.Equal(t, 5.0, profile.VCC)
	assert.Equal(t, 1.8, profile.VIO)
	assert.Equal(t, 120.0, profile.LoadResistance)
	assert.Equal(t, 85.0, profile.JunctionTemp)
	assert.Equal(t, 150*time.Millisecond, profile.Timing.UVFilter)
	assert.Equal(t, 2*time.Millisecond, profile.Timing.TXDDominantTimeout)
	assert.Equal(t, 3*time.Millisecond, profile.Timing.BusDominantTimeout)
	assert.Equal(t, time.Microsecond, profile.Timing.WakeFilter)
	assert.Equal(t, 1500*time.Microsecond, profile.Timing.WakeTimeout)
	assert.Equal(t, time.Second, profile.Timing.SilenceTimeout)
}

func TestLoadProfileInvalidFallsBackToDefaults(t *testing.T) {
	profile, err := LoadProfile("testdata/profile_invalid.ini")
	assert.True(t, errors.Is(err, ErrInvalidTiming))
	assert.Equal(t, DefaultProfile(), profile)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile("testdata/does_not_exist.ini")
	assert.NotNil(t, err)
}
