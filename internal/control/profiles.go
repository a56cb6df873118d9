package control

import (
	"strings"
	"time"
)

// BrandMethod is a brand's general control preference.
type BrandMethod string

const (
	BrandCEC BrandMethod = "CEC"
	BrandIR  BrandMethod = "IR"

	// BrandHybrid sends volume commands over IR and everything else over CEC.
	BrandHybrid BrandMethod = "HYBRID"
)

// BrandProfile captures how a display brand behaves on the CEC bus.
type BrandProfile struct {
	Brand string

	PowerOnDelay     time.Duration
	PowerOffDelay    time.Duration
	VolumeDelay      time.Duration
	InputSwitchDelay time.Duration

	SupportsCECVolume bool
	SupportsWakeOnCEC bool
	PreferredMethod   BrandMethod
}

// DefaultBrand is the profile key used for unknown brands.
const DefaultBrand = "default"

var brandProfiles = map[string]BrandProfile{
	DefaultBrand: {
		PowerOnDelay:      1000 * time.Millisecond,
		PowerOffDelay:     500 * time.Millisecond,
		VolumeDelay:       200 * time.Millisecond,
		InputSwitchDelay:  1000 * time.Millisecond,
		SupportsCECVolume: true,
		SupportsWakeOnCEC: true,
		PreferredMethod:   BrandCEC,
	},
	"sony": {
		PowerOnDelay:      2000 * time.Millisecond,
		PowerOffDelay:     1000 * time.Millisecond,
		VolumeDelay:       300 * time.Millisecond,
		InputSwitchDelay:  1500 * time.Millisecond,
		SupportsCECVolume: true,
		SupportsWakeOnCEC: true,
		PreferredMethod:   BrandCEC,
	},
	"samsung": {
		PowerOnDelay:      3000 * time.Millisecond,
		PowerOffDelay:     1000 * time.Millisecond,
		VolumeDelay:       300 * time.Millisecond,
		InputSwitchDelay:  2000 * time.Millisecond,
		SupportsCECVolume: false,
		SupportsWakeOnCEC: true,
		PreferredMethod:   BrandHybrid,
	},
	"lg": {
		PowerOnDelay:      2500 * time.Millisecond,
		PowerOffDelay:     1000 * time.Millisecond,
		VolumeDelay:       250 * time.Millisecond,
		InputSwitchDelay:  1500 * time.Millisecond,
		SupportsCECVolume: true,
		SupportsWakeOnCEC: true,
		PreferredMethod:   BrandCEC,
	},
	"vizio": {
		PowerOnDelay:      3000 * time.Millisecond,
		PowerOffDelay:     1500 * time.Millisecond,
		VolumeDelay:       300 * time.Millisecond,
		InputSwitchDelay:  2000 * time.Millisecond,
		SupportsCECVolume: false,
		SupportsWakeOnCEC: false,
		PreferredMethod:   BrandIR,
	},
	"tcl": {
		PowerOnDelay:      2500 * time.Millisecond,
		PowerOffDelay:     1000 * time.Millisecond,
		VolumeDelay:       300 * time.Millisecond,
		InputSwitchDelay:  2000 * time.Millisecond,
		SupportsCECVolume: false,
		SupportsWakeOnCEC: true,
		PreferredMethod:   BrandHybrid,
	},
	"hisense": {
		PowerOnDelay:      3000 * time.Millisecond,
		PowerOffDelay:     1000 * time.Millisecond,
		VolumeDelay:       300 * time.Millisecond,
		InputSwitchDelay:  2000 * time.Millisecond,
		SupportsCECVolume: false,
		SupportsWakeOnCEC: false,
		PreferredMethod:   BrandIR,
	},
}

// LookupProfile returns the profile for brand, matched case-insensitively,
// or the default profile.
func LookupProfile(brand string) BrandProfile {
	key := strings.ToLower(strings.TrimSpace(brand))
	p, ok := brandProfiles[key]
	if !ok {
		p = brandProfiles[DefaultBrand]
		key = DefaultBrand
	}
	p.Brand = key
	return p
}

// Brands lists the brands with a dedicated profile.
func Brands() []string {
	brands := make([]string, 0, len(brandProfiles)-1)
	for b := range brandProfiles {
		if b != DefaultBrand {
			brands = append(brands, b)
		}
	}
	return brands
}

// DelayFor is the settle time between routing the matrix and sending
// command over CEC.
func (p BrandProfile) DelayFor(command string) time.Duration {
	switch {
	case command == "power_on":
		return p.PowerOnDelay
	case command == "power_off" || command == "standby" || command == "power_toggle":
		return p.PowerOffDelay
	case command == "active_source":
		return p.InputSwitchDelay
	default:
		// Remote key presses: volume, mute, channel.
		return p.VolumeDelay
	}
}

func isVolumeCommand(command string) bool {
	switch command {
	case "volume_up", "volume_down", "mute":
		return true
	}
	return false
}
