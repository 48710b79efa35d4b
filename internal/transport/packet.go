package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jupitervolta/ds1054z/internal/command"
)

// Packet field names.
const (
	FieldAPI    = "api"
	FieldArgs   = "args"
	FieldKwargs = "kwargs"
	FieldResult = "result"
	FieldID     = "id"
)

// Packet is a command request or response. Fields other than api, args and
// kwargs are carried through to the response untouched.
type Packet map[string]json.RawMessage

// DecodePacket parses a JSON object.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: packet is not a JSON object: %v", command.ErrValidation, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: packet is null", command.ErrValidation)
	}
	return p, nil
}

// API returns the operation name, or "" when absent or not a string.
func (p Packet) API() string {
	var api string
	if raw, ok := p[FieldAPI]; ok {
		_ = json.Unmarshal(raw, &api)
	}
	return api
}

// ID returns the correlation id, or "" when absent.
func (p Packet) ID() string {
	raw, ok := p[FieldID]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return string(raw)
	}
	return id
}

// Args returns the positional arguments. A missing or null field is empty.
func (p Packet) Args() ([]json.RawMessage, error) {
	raw, ok := p[FieldArgs]
	if !ok || isNull(raw) {
		return []json.RawMessage{}, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: args must be an array", command.ErrValidation)
	}
	return args, nil
}

// Kwargs returns the keyword arguments. A missing or null field is empty.
func (p Packet) Kwargs() (map[string]json.RawMessage, error) {
	raw, ok := p[FieldKwargs]
	if !ok || isNull(raw) {
		return map[string]json.RawMessage{}, nil
	}
	var kwargs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &kwargs); err != nil {
		return nil, fmt.Errorf("%w: kwargs must be an object", command.ErrValidation)
	}
	return kwargs, nil
}

// Call converts the packet for the dispatcher.
func (p Packet) Call() (command.Call, error) {
	args, err := p.Args()
	if err != nil {
		return command.Call{}, err
	}
	kwargs, err := p.Kwargs()
	if err != nil {
		return command.Call{}, err
	}
	return command.Call{API: p.API(), Args: args, Kwargs: kwargs}, nil
}

// WithResult returns a copy of p with result set. p is not modified.
func (p Packet) WithResult(v interface{}) (Packet, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	out := p.clone()
	out[FieldResult] = raw
	return out, nil
}

// CorrelationID returns the packet id, or a fresh one when the packet has
// none. The packet itself is never given the generated id.
func (p Packet) CorrelationID() string {
	if id := p.ID(); id != "" {
		return id
	}
	return uuid.NewString()
}

// Encode renders the packet as JSON.
func (p Packet) Encode() ([]byte, error) {
	return json.Marshal(p)
}

func (p Packet) clone() Packet {
	out := make(Packet, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
