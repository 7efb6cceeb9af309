// Package protocol defines the telemetry wire records exchanged between the
// sensor and console processes. Each record is a flat JSON object sent as one
// websocket text message, with a mandatory "type" field identifying it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordType identifies the type of telemetry record
type RecordType string

const (
	TypeHello    RecordType = "hello"     // Session greeting with device identity
	TypeMousePos RecordType = "mouse_pos" // Absolute pointer position sample
)

// ErrUnknownType marks records whose type field is not recognized.
// Receivers ignore these rather than dropping the connection.
var ErrUnknownType = errors.New("unknown record type")

// ErrBadViewport marks position records whose viewport dimensions are not
// strictly positive. Such records come from untrusted network input and are
// dropped, never fatal.
var ErrBadViewport = errors.New("invalid viewport dimensions")

// Record is implemented by all telemetry wire records.
type Record interface {
	Kind() RecordType
	Bytes() ([]byte, error)
}

// Hello announces a sensor session to the console.
type Hello struct {
	Type      RecordType `json:"type"`
	Device    string     `json:"device"`
	Timestamp int64      `json:"ts"` // Unix milliseconds
}

// MousePos carries one absolute pointer position together with the viewport
// bounds it was integrated against.
type MousePos struct {
	Type      RecordType `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	W         float64    `json:"w"`
	H         float64    `json:"h"`
	Timestamp int64      `json:"ts"` // Unix milliseconds
}

// NewHello creates a hello record with the current timestamp
func NewHello(device string) *Hello {
	return &Hello{
		Type:      TypeHello,
		Device:    device,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewMousePos creates a position record with the current timestamp
func NewMousePos(x, y, w, h float64) *MousePos {
	return &MousePos{
		Type:      TypeMousePos,
		X:         x,
		Y:         y,
		W:         w,
		H:         h,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Kind returns the record type.
func (h *Hello) Kind() RecordType { return TypeHello }

// Bytes returns the JSON-encoded record.
func (h *Hello) Bytes() ([]byte, error) {
	return json.Marshal(h)
}

// Kind returns the record type.
func (m *MousePos) Kind() RecordType { return TypeMousePos }

// Bytes returns the JSON-encoded record.
func (m *MousePos) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the viewport invariant. Position records arrive over the
// network and are untrusted; callers drop invalid records and continue.
func (m *MousePos) Validate() error {
	if m.W <= 0 || m.H <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrBadViewport, m.W, m.H)
	}
	return nil
}

// envelope sniffs the type field before full decoding
type envelope struct {
	Type RecordType `json:"type"`
}

// Parse decodes a single wire record. Unknown types return ErrUnknownType;
// malformed JSON returns a parse error. Both are skip-and-continue conditions
// for receivers.
func Parse(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}

	switch env.Type {
	case TypeHello:
		var h Hello
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("failed to parse hello record: %w", err)
		}
		return &h, nil
	case TypeMousePos:
		var m MousePos
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse mouse_pos record: %w", err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
