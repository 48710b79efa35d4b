package command

import (
	"encoding/json"
	"fmt"
)

// Call is one decoded operation request.
type Call struct {
	API    string
	Args   []json.RawMessage
	Kwargs map[string]json.RawMessage
}

// args gives typed access to a call's arguments. Type mismatches are
// validation errors.
type args struct {
	op  string
	pos []json.RawMessage
	kw  map[string]json.RawMessage
}

func (a args) str(i int) (string, error) {
	var s string
	if err := json.Unmarshal(a.pos[i], &s); err != nil {
		return "", fmt.Errorf("%w: %s argument %d must be a string", ErrValidation, a.op, i)
	}
	return s, nil
}

func (a args) strs(from int) ([]string, error) {
	out := make([]string, 0, len(a.pos)-from)
	for i := from; i < len(a.pos); i++ {
		s, err := a.str(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (a args) value(i int) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(a.pos[i], &v); err != nil {
		return nil, fmt.Errorf("%w: %s argument %d: %v", ErrValidation, a.op, i, err)
	}
	return v, nil
}

func (a args) raw(i int) json.RawMessage {
	return a.pos[i]
}

func (a args) kwBool(name string, def bool) (bool, error) {
	raw, ok := a.kw[name]
	if !ok || string(raw) == "null" {
		return def, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("%w: %s kwarg %s must be a boolean", ErrValidation, a.op, name)
	}
	return b, nil
}

func (a args) kwFloat(name string, def float64) (float64, error) {
	raw, ok := a.kw[name]
	if !ok || string(raw) == "null" {
		return def, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %s kwarg %s must be a number", ErrValidation, a.op, name)
	}
	return f, nil
}

func (a args) kwInt(name string, def int) (int, error) {
	raw, ok := a.kw[name]
	if !ok || string(raw) == "null" {
		return def, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s kwarg %s must be an integer", ErrValidation, a.op, name)
	}
	return n, nil
}

func (a args) kwString(name, def string) (string, error) {
	raw, ok := a.kw[name]
	if !ok || string(raw) == "null" {
		return def, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s kwarg %s must be a string", ErrValidation, a.op, name)
	}
	return s, nil
}

// params renders the call for the audit trail.
func (c Call) params() map[string]interface{} {
	out := map[string]interface{}{}
	if len(c.Args) > 0 {
		out["args"] = c.Args
	}
	if len(c.Kwargs) > 0 {
		out["kwargs"] = c.Kwargs
	}
	return out
}
