package atlas

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueKind is the data type a parameter carries.
type ValueKind int

const (
	KindNumeric ValueKind = iota
	KindString
)

func (k ValueKind) String() string {
	if k == KindString {
		return "string"
	}
	return "numeric"
}

// ParameterDescriptor describes one family of processor parameters,
// e.g. "ZoneGain" covers ZoneGain_0, ZoneGain_1, ...
type ParameterDescriptor struct {
	Prefix string
	Kind   ValueKind

	// Min and Max bound absolute ("val") values of numeric parameters.
	Min float64
	Max float64

	// Indexed parameters must be addressed with a _N suffix.
	Indexed  bool
	ReadOnly bool

	// Action parameters trigger something on set and cannot be read.
	Action bool
}

// pctMin and pctMax bound "pct" values for every numeric parameter.
const (
	pctMin = 0
	pctMax = 100
)

// parameterTable lists every parameter family the client accepts.
var parameterTable = map[string]ParameterDescriptor{
	"ZoneGain":    {Prefix: "ZoneGain", Kind: KindNumeric, Min: -80, Max: 0, Indexed: true},
	"ZoneMute":    {Prefix: "ZoneMute", Kind: KindNumeric, Min: 0, Max: 1, Indexed: true},
	"ZoneSource":  {Prefix: "ZoneSource", Kind: KindNumeric, Min: -1, Max: 13, Indexed: true},
	"ZoneName":    {Prefix: "ZoneName", Kind: KindString, Indexed: true, ReadOnly: true},
	"ZoneMeter":   {Prefix: "ZoneMeter", Kind: KindNumeric, Min: -80, Max: 20, Indexed: true, ReadOnly: true},
	"SourceGain":  {Prefix: "SourceGain", Kind: KindNumeric, Min: -80, Max: 0, Indexed: true},
	"SourceMute":  {Prefix: "SourceMute", Kind: KindNumeric, Min: 0, Max: 1, Indexed: true},
	"SourceName":  {Prefix: "SourceName", Kind: KindString, Indexed: true, ReadOnly: true},
	"SourceMeter": {Prefix: "SourceMeter", Kind: KindNumeric, Min: -80, Max: 20, Indexed: true, ReadOnly: true},
	"GroupGain":   {Prefix: "GroupGain", Kind: KindNumeric, Min: -80, Max: 0, Indexed: true},
	"GroupMute":   {Prefix: "GroupMute", Kind: KindNumeric, Min: 0, Max: 1, Indexed: true},
	"GroupSource": {Prefix: "GroupSource", Kind: KindNumeric, Min: -1, Max: 13, Indexed: true},
	"GroupActive": {Prefix: "GroupActive", Kind: KindNumeric, Min: 0, Max: 1, Indexed: true},
	"RecallScene": {Prefix: "RecallScene", Kind: KindNumeric, Min: 0, Max: 31, Action: true},
	"PlayMessage": {Prefix: "PlayMessage", Kind: KindNumeric, Min: 0, Max: 31, Action: true},
	"KeepAlive":   {Prefix: "KeepAlive", Kind: KindString, ReadOnly: true},
}

// keepAliveParam is read on every keep-alive tick.
const keepAliveParam = "KeepAlive"

// LookupParameter returns the descriptor for a full parameter name such
// as "ZoneGain_3".
func LookupParameter(name string) (ParameterDescriptor, error) {
	if name == "" {
		return ParameterDescriptor{}, fmt.Errorf("%w: empty parameter name", ErrValidation)
	}

	prefix, index, hasIndex := strings.Cut(name, "_")
	desc, ok := parameterTable[prefix]
	if !ok {
		return ParameterDescriptor{}, fmt.Errorf("%w: unknown parameter %q", ErrValidation, name)
	}

	switch {
	case desc.Indexed && !hasIndex:
		return ParameterDescriptor{}, fmt.Errorf("%w: %q needs an index suffix", ErrValidation, name)
	case !desc.Indexed && hasIndex:
		return ParameterDescriptor{}, fmt.Errorf("%w: %q does not take an index", ErrValidation, name)
	case hasIndex:
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return ParameterDescriptor{}, fmt.Errorf("%w: bad index in %q", ErrValidation, name)
		}
	}
	return desc, nil
}

// Parameters returns the known parameter prefixes in sorted order.
func Parameters() []ParameterDescriptor {
	out := make([]ParameterDescriptor, 0, len(parameterTable))
	for _, d := range parameterTable {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// ValidateGet checks that name can be read in format.
func ValidateGet(name, format string) error {
	desc, err := LookupParameter(name)
	if err != nil {
		return err
	}
	if desc.Action {
		return fmt.Errorf("%w: %q is an action and cannot be read", ErrValidation, name)
	}
	return checkFormat(desc, name, format)
}

// ValidateSet checks that value may be written to name in format and
// returns the value normalised for the wire (float64 or string).
func ValidateSet(name string, value any, format string) (any, error) {
	desc, err := LookupParameter(name)
	if err != nil {
		return nil, err
	}
	if desc.ReadOnly {
		return nil, fmt.Errorf("%w: %q is read-only", ErrValidation, name)
	}
	if err := checkFormat(desc, name, format); err != nil {
		return nil, err
	}

	if desc.Kind == KindString {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q expects a string, got %T", ErrValidation, name, value)
		}
		return s, nil
	}

	n, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: %q expects a number, got %T", ErrValidation, name, value)
	}
	if !finite(n) {
		return nil, fmt.Errorf("%w: %q value %v is not a finite number", ErrValidation, name, n)
	}

	lo, hi := desc.Min, desc.Max
	if format == FormatPct {
		lo, hi = pctMin, pctMax
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%w: %q value %v outside [%v, %v]", ErrValidation, name, n, lo, hi)
	}
	return n, nil
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// ValidateBump checks a relative adjustment. Only numeric, writable,
// non-action parameters can be bumped.
func ValidateBump(name string, delta float64) error {
	desc, err := LookupParameter(name)
	if err != nil {
		return err
	}
	if desc.ReadOnly || desc.Action || desc.Kind != KindNumeric {
		return fmt.Errorf("%w: %q cannot be bumped", ErrValidation, name)
	}
	span := desc.Max - desc.Min
	if !finite(delta) || delta == 0 || delta > span || delta < -span {
		return fmt.Errorf("%w: bump of %v invalid for %q", ErrValidation, delta, name)
	}
	return nil
}

func checkFormat(desc ParameterDescriptor, name, format string) error {
	switch format {
	case FormatVal, FormatPct:
		if desc.Kind != KindNumeric {
			return fmt.Errorf("%w: %q is a string parameter, format %q not allowed", ErrValidation, name, format)
		}
	case FormatStr:
		// Every parameter has a string rendering.
	default:
		return fmt.Errorf("%w: unknown format %q", ErrValidation, format)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
