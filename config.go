package tcansim

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Documented valid ranges for the configurable timing parameters.
const (
	UVFilterMin = 100 * time.Millisecond
	UVFilterMax = 350 * time.Millisecond

	TXDDominantTimeoutMin = 1200 * time.Microsecond
	TXDDominantTimeoutMax = 3800 * time.Microsecond

	BusDominantTimeoutMin = 1400 * time.Microsecond
	BusDominantTimeoutMax = 3800 * time.Microsecond

	WakeFilterMin = 500 * time.Nanosecond
	WakeFilterMax = 1800 * time.Nanosecond

	WakeTimeoutMin = 800 * time.Microsecond
	WakeTimeoutMax = 2 * time.Millisecond

	SilenceTimeoutMin = 600 * time.Millisecond
	SilenceTimeoutMax = 1200 * time.Millisecond
)

// Valid ranges for the electrical configuration.
const (
	VSUPConfigMax   = 40.0
	VCCConfigMax    = 6.0
	VIOConfigMax    = 5.5
	JunctionTempMin = -40.0
	JunctionTempMax = 200.0
)

// TimingParams are the six configurable timing windows. They are the single
// source of truth for every timed behavior in the simulator.
type TimingParams struct {
	UVFilter           time.Duration // undervoltage filter, 100-350ms
	TXDDominantTimeout time.Duration // TXD dominant timeout, 1.2-3.8ms
	BusDominantTimeout time.Duration // bus dominant timeout, 1.4-3.8ms
	WakeFilter         time.Duration // wake-up phase filter, 0.5-1.8us
	WakeTimeout        time.Duration // wake-up pattern timeout, 0.8-2.0ms
	SilenceTimeout     time.Duration // bus silence timeout, 0.6-1.2s
}

// DefaultTimingParams returns the midpoint of each documented range.
func DefaultTimingParams() TimingParams {
	return TimingParams{
		UVFilter:           (UVFilterMin + UVFilterMax) / 2,
		TXDDominantTimeout: (TXDDominantTimeoutMin + TXDDominantTimeoutMax) / 2,
		BusDominantTimeout: (BusDominantTimeoutMin + BusDominantTimeoutMax) / 2,
		WakeFilter:         (WakeFilterMin + WakeFilterMax) / 2,
		WakeTimeout:        (WakeTimeoutMin + WakeTimeoutMax) / 2,
		SilenceTimeout:     (SilenceTimeoutMin + SilenceTimeoutMax) / 2,
	}
}

// Validate checks every parameter against its documented range.
func (p TimingParams) Validate() error {
	check := func(name string, v, min, max time.Duration) error {
		if v < min || v > max {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidTiming, name, v, min, max)
		}
		return nil
	}
	if err := check("uv_filter", p.UVFilter, UVFilterMin, UVFilterMax); err != nil {
		return err
	}
	if err := check("txd_dominant_timeout", p.TXDDominantTimeout, TXDDominantTimeoutMin, TXDDominantTimeoutMax); err != nil {
		return err
	}
	if err := check("bus_dominant_timeout", p.BusDominantTimeout, BusDominantTimeoutMin, BusDominantTimeoutMax); err != nil {
		return err
	}
	if err := check("wake_filter", p.WakeFilter, WakeFilterMin, WakeFilterMax); err != nil {
		return err
	}
	if err := check("wake_timeout", p.WakeTimeout, WakeTimeoutMin, WakeTimeoutMax); err != nil {
		return err
	}
	return check("silence_timeout", p.SilenceTimeout, SilenceTimeoutMin, SilenceTimeoutMax)
}

// Profile is the full electrical and timing configuration of a simulator.
type Profile struct {
	VSUP float64
	VCC  float64
	VIO  float64

	JunctionTemp    float64
	LoadResistance  float64 // bus load resistance, ohms
	LoadCapacitance float64 // bus load capacitance, farads

	Timing TimingParams
}

// DefaultProfile returns nominal automotive operating conditions.
func DefaultProfile() Profile {
	return Profile{
		VSUP:            12.0,
		VCC:             5.0,
		VIO:             3.3,
		JunctionTemp:    25.0,
		LoadResistance:  60.0,
		LoadCapacitance: 100e-12,
		Timing:          DefaultTimingParams(),
	}
}

// Validate checks the profile against the documented operating ranges.
func (p Profile) Validate() error {
	if err := ValidateSupplies(p.VSUP, p.VCC, p.VIO); err != nil {
		return err
	}
	if err := ValidateJunctionTemp(p.JunctionTemp); err != nil {
		return err
	}
	if p.LoadResistance < 0 || p.LoadCapacitance < 0 {
		return fmt.Errorf("%w: bus load must be non-negative", ErrInvalidConfig)
	}
	return p.Timing.Validate()
}

// ValidateSupplies range checks the three rail voltages.
func ValidateSupplies(vsup, vcc, vio float64) error {
	if vsup < 0 || vsup > VSUPConfigMax {
		return fmt.Errorf("%w: vsup=%.2fV outside [0, %.0f]", ErrInvalidConfig, vsup, VSUPConfigMax)
	}
	if vcc < 0 || vcc > VCCConfigMax {
		return fmt.Errorf("%w: vcc=%.2fV outside [0, %.0f]", ErrInvalidConfig, vcc, VCCConfigMax)
	}
	if vio < 0 || vio > VIOConfigMax {
		return fmt.Errorf("%w: vio=%.2fV outside [0, %.1f]", ErrInvalidConfig, vio, VIOConfigMax)
	}
	return nil
}

// ValidateJunctionTemp range checks the junction temperature.
func ValidateJunctionTemp(tj float64) error {
	if tj < JunctionTempMin || tj > JunctionTempMax {
		return fmt.Errorf("%w: tj=%.1fC outside [%.0f, %.0f]", ErrInvalidConfig, tj, JunctionTempMin, JunctionTempMax)
	}
	return nil
}

// LoadProfile reads a device profile from an INI file. Missing keys keep
// their defaults, the whole profile is validated before being returned so a
// bad file never yields a partially applied configuration.
func LoadProfile(filePath string) (Profile, error) {
	profile := DefaultProfile()

	cfg, err := ini.Load(filePath)
	if err != nil {
		return profile, err
	}

	supply := cfg.Section("supply")
	profile.VSUP = supply.Key("vsup").MustFloat64(profile.VSUP)
	profile.VCC = supply.Key("vcc").MustFloat64(profile.VCC)
	profile.VIO = supply.Key("vio").MustFloat64(profile.VIO)

	bus := cfg.Section("bus")
	profile.LoadResistance = bus.Key("load_resistance").MustFloat64(profile.LoadResistance)
	profile.LoadCapacitance = bus.Key("load_capacitance").MustFloat64(profile.LoadCapacitance)

	thermal := cfg.Section("thermal")
	profile.JunctionTemp = thermal.Key("junction_temperature").MustFloat64(profile.JunctionTemp)

	timing := cfg.Section("timing")
	ms := func(key string, current time.Duration) time.Duration {
		v := timing.Key(key).MustFloat64(float64(current) / float64(time.Millisecond))
		return time.Duration(v * float64(time.Millisecond))
	}
	profile.Timing.UVFilter = ms("uv_filter_ms", profile.Timing.UVFilter)
	profile.Timing.TXDDominantTimeout = ms("txd_dominant_timeout_ms", profile.Timing.TXDDominantTimeout)
	profile.Timing.BusDominantTimeout = ms("bus_dominant_timeout_ms", profile.Timing.BusDominantTimeout)
	profile.Timing.WakeTimeout = ms("wake_timeout_ms", profile.Timing.WakeTimeout)

	wakeFilterUs := timing.Key("wake_filter_us").MustFloat64(
		float64(profile.Timing.WakeFilter) / float64(time.Microsecond))
	profile.Timing.WakeFilter = time.Duration(wakeFilterUs * float64(time.Microsecond))

	silenceS := timing.Key("silence_timeout_s").MustFloat64(
		profile.Timing.SilenceTimeout.Seconds())
	profile.Timing.SilenceTimeout = time.Duration(silenceS * float64(time.Second))

	if err := profile.Validate(); err != nil {
		return DefaultProfile(), err
	}
	log.Infof("[CONFIG] loaded profile from %v", filePath)
	return profile, nil
}
