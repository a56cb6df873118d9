package device

import (
	"fmt"
	"strings"
	"time"
)

// Method is a device's preferred control path.
type Method string

const (
	MethodCEC  Method = "CEC"
	MethodIR   Method = "IR"
	MethodAuto Method = "AUTO"
)

// ParseMethod normalises a method string. Empty input yields MethodAuto.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return MethodAuto, nil
	case MethodCEC, MethodIR, MethodAuto:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

const (
	// maxCECAddress is the highest CEC logical address (15 is broadcast).
	maxCECAddress = 15
	maxNameLength = 100
)

// TV is a controllable display wired to one matrix output.
//
// The control layer reads TVs but never mutates them.
type TV struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Brand string `json:"brand" yaml:"brand"`

	// Output is the matrix output (zone) feeding this display.
	Output int `json:"output" yaml:"output"`

	// CECAddress is the logical address commands are sent to once the
	// matrix has routed the CEC input to Output. Usually 0 (TV).
	CECAddress int `json:"cec_address" yaml:"cec_address"`

	SupportsCEC bool   `json:"supports_cec" yaml:"supports_cec"`
	SupportsIR  bool   `json:"supports_ir" yaml:"supports_ir"`
	IRAddress   string `json:"ir_address,omitempty" yaml:"ir_address"`

	PreferredMethod Method `json:"preferred_method" yaml:"preferred_method"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Supports reports whether the TV can be driven by m.
func (t *TV) Supports(m Method) bool {
	switch m {
	case MethodCEC:
		return t.SupportsCEC
	case MethodIR:
		return t.SupportsIR
	default:
		return false
	}
}

// Validate checks the TV's fields and normalises PreferredMethod.
func (t *TV) Validate() error {
	var problems []string

	if strings.TrimSpace(t.ID) == "" {
		problems = append(problems, "id is required")
	}
	if name := strings.TrimSpace(t.Name); name == "" || len(name) > maxNameLength {
		problems = append(problems, fmt.Sprintf("name must be 1-%d characters", maxNameLength))
	}
	if t.Output < 1 {
		problems = append(problems, fmt.Sprintf("output must be >= 1, got %d", t.Output))
	}
	if t.CECAddress < 0 || t.CECAddress >= maxCECAddress {
		problems = append(problems, fmt.Sprintf("cec_address must be 0-14, got %d", t.CECAddress))
	}
	if !t.SupportsCEC && !t.SupportsIR {
		problems = append(problems, "at least one of supports_cec or supports_ir must be set")
	}
	if t.SupportsIR && strings.TrimSpace(t.IRAddress) == "" {
		problems = append(problems, "ir_address is required when supports_ir is set")
	}

	m, err := ParseMethod(string(t.PreferredMethod))
	if err != nil {
		problems = append(problems, err.Error())
	} else {
		t.PreferredMethod = m
		if m != MethodAuto && !t.Supports(m) {
			problems = append(problems, fmt.Sprintf("preferred_method %s is not supported by this device", m))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDevice, t.ID, strings.Join(problems, "; "))
	}
	return nil
}
