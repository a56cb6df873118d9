package control

import (
	"fmt"
	"strings"

	"github.com/nerrad567/sportsbar-av/internal/device"
)

// Method is the path a Result was achieved on.
type Method string

const (
	MethodCEC      Method = "CEC"
	MethodIR       Method = "IR"
	MethodFallback Method = "FALLBACK"
)

// ParseMethod accepts CEC, IR, AUTO or empty (case-insensitive). AUTO and
// empty both return "" meaning no override.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(device.MethodAuto):
		return "", nil
	case string(MethodCEC):
		return MethodCEC, nil
	case string(MethodIR):
		return MethodIR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrMethodUnsupported, s)
	}
}

func supports(tv *device.TV, m Method) bool {
	switch m {
	case MethodCEC:
		return tv.SupportsCEC
	case MethodIR:
		return tv.SupportsIR
	}
	return false
}

func other(m Method) Method {
	if m == MethodCEC {
		return MethodIR
	}
	return MethodCEC
}

// SelectMethod decides the first path to try for command on tv.
//
// Order: an explicit override, then the device's own preference, then
// command-specific brand limits (CEC volume, wake-on-CEC), then the
// brand's general preference, then CEC if supported, else IR.
func SelectMethod(tv *device.TV, profile BrandProfile, command string, override Method) (Method, error) {
	if !tv.SupportsCEC && !tv.SupportsIR {
		return "", fmt.Errorf("%w: %s", ErrNoControlPath, tv.ID)
	}

	if override != "" {
		if !supports(tv, override) {
			return "", fmt.Errorf("%w: %s on %s", ErrMethodUnsupported, override, tv.ID)
		}
		return override, nil
	}

	if pref := Method(tv.PreferredMethod); pref == MethodCEC || pref == MethodIR {
		if supports(tv, pref) {
			return pref, nil
		}
	}

	if tv.SupportsIR {
		if isVolumeCommand(command) && !profile.SupportsCECVolume {
			return MethodIR, nil
		}
		if command == "power_on" && !profile.SupportsWakeOnCEC {
			return MethodIR, nil
		}
	}

	switch profile.PreferredMethod {
	case BrandCEC:
		if tv.SupportsCEC {
			return MethodCEC, nil
		}
	case BrandIR:
		if tv.SupportsIR {
			return MethodIR, nil
		}
	case BrandHybrid:
		if isVolumeCommand(command) && tv.SupportsIR {
			return MethodIR, nil
		}
		if tv.SupportsCEC {
			return MethodCEC, nil
		}
	}

	if tv.SupportsCEC {
		return MethodCEC, nil
	}
	return MethodIR, nil
}
