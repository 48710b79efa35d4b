package scope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AttrKind describes how an attribute value is encoded on the wire.
type AttrKind int

const (
	KindFloat AttrKind = iota
	KindString
	KindBool
	KindList
)

// Attribute maps a public attribute name onto SCPI.
type Attribute struct {
	Name     string
	Kind     AttrKind
	Query    string // SCPI query; empty for derived attributes
	Set      string // SCPI command prefix; empty when read-only
	ReadOnly bool
}

// Derived attributes are computed by the driver rather than a single query.
const AttrDisplayedChannels = "displayed_channels"

var attributes = map[string]Attribute{
	"idn":                 {Name: "idn", Kind: KindString, Query: "*IDN?", ReadOnly: true},
	"timebase_scale":      {Name: "timebase_scale", Kind: KindFloat, Query: ":TIMebase:MAIN:SCALe?", Set: ":TIMebase:MAIN:SCALe"},
	"timebase_offset":     {Name: "timebase_offset", Kind: KindFloat, Query: ":TIMebase:MAIN:OFFSet?", Set: ":TIMebase:MAIN:OFFSet"},
	"memory_depth":        {Name: "memory_depth", Kind: KindString, Query: ":ACQuire:MDEPth?", Set: ":ACQuire:MDEPth"},
	"acquire_type":        {Name: "acquire_type", Kind: KindString, Query: ":ACQuire:TYPE?", Set: ":ACQuire:TYPE"},
	"sample_rate":         {Name: "sample_rate", Kind: KindFloat, Query: ":ACQuire:SRATe?", ReadOnly: true},
	"trigger_status":      {Name: "trigger_status", Kind: KindString, Query: ":TRIGger:STATus?", ReadOnly: true},
	"trigger_sweep":       {Name: "trigger_sweep", Kind: KindString, Query: ":TRIGger:SWEep?", Set: ":TRIGger:SWEep"},
	"trigger_level":       {Name: "trigger_level", Kind: KindFloat, Query: ":TRIGger:EDGe:LEVel?", Set: ":TRIGger:EDGe:LEVel"},
	"waveform_mode":       {Name: "waveform_mode", Kind: KindString, Query: ":WAVeform:MODE?", Set: ":WAVeform:MODE"},
	AttrDisplayedChannels: {Name: AttrDisplayedChannels, Kind: KindList, ReadOnly: true},
}

// LookupAttr returns the table entry for name.
func LookupAttr(name string) (Attribute, error) {
	attr, ok := attributes[name]
	if !ok {
		return Attribute{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return attr, nil
}

// HasAttr reports whether name is in the attribute table.
func HasAttr(name string) bool {
	_, ok := attributes[name]
	return ok
}

// AttrNames lists every attribute name in sorted order.
func AttrNames() []string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCommand renders the SCPI command that writes value.
func (a Attribute) SetCommand(value any) (string, error) {
	if a.ReadOnly || a.Set == "" {
		return "", fmt.Errorf("%w: %q", ErrReadOnlyAttribute, a.Name)
	}

	arg, err := a.format(value)
	if err != nil {
		return "", err
	}
	return a.Set + " " + arg, nil
}

// Coerce converts a decoded JSON value into the attribute's Go type.
func (a Attribute) Coerce(value any) (any, error) {
	switch a.Kind {
	case KindFloat:
		return toFloat(a.Name, value)
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return parseBool(a.Name, v)
		}
		return nil, fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidValue, a.Name, value)
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		case float64, int, json.Number:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, a.Name, value)
	default:
		return nil, fmt.Errorf("%w: %s cannot be set", ErrReadOnlyAttribute, a.Name)
	}
}

// Parse decodes a raw query reply.
func (a Attribute) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	switch a.Kind {
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s reply %q is not a number", ErrInstrument, a.Name, raw)
		}
		return f, nil
	case KindBool:
		return parseBool(a.Name, raw)
	case KindList:
		if raw == "" {
			return []string{}, nil
		}
		return strings.Split(raw, ","), nil
	default:
		return raw, nil
	}
}

func (a Attribute) format(value any) (string, error) {
	v, err := a.Coerce(value)
	if err != nil {
		return "", err
	}

	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		if val {
			return "ON", nil
		}
		return "OFF", nil
	default:
		return fmt.Sprint(val), nil
	}
}

func toFloat(name string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s expects a number, got %q", ErrInvalidValue, name, v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidValue, name, value)
}

func parseBool(name, raw string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "ON", "TRUE":
		return true, nil
	case "0", "OFF", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s expects a bool, got %q", ErrInvalidValue, name, raw)
}
