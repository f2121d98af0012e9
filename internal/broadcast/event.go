// Package broadcast fans session events out to stream subscribers.
package broadcast

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event types.
const (
	TypeTick   = "tick"   // A processed frame with motion
	TypeSymbol = "symbol" // A symbol was emitted
	TypeState  = "state"  // Start, stop or reset
	TypeConfig = "config" // Threshold or region size changed
)

// Event is one notification about a session. Data values must be JSON
// scalars, []any or map[string]any so both encodings can carry them.
type Event struct {
	Type      string         `json:"type"`
	Session   string         `json:"session"`
	Timestamp float64        `json:"timestamp"` // Unix seconds
	Data      map[string]any `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, session string, data map[string]any) Event {
	return Event{
		Type:      typ,
		Session:   session,
		Timestamp: float64(time.Now().UnixMilli()) / 1000,
		Data:      data,
	}
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	Type         string
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized google.protobuf.Struct (base64 encoded for SSE)
}

// Serialize encodes ev as JSON and as a base64 protobuf Struct.
func Serialize(ev Event) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event JSON: %w", err)
	}

	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	st, err := structpb.NewStruct(map[string]any{
		"type":      ev.Type,
		"session":   ev.Session,
		"timestamp": ev.Timestamp,
		"data":      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event protobuf: %w", err)
	}

	return &SerializedEvent{
		Type:         ev.Type,
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// DecodeProtobuf reverses the protobuf half of Serialize.
func DecodeProtobuf(data []byte) (*structpb.Struct, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	st := &structpb.Struct{}
	if err := proto.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event protobuf: %w", err)
	}
	return st, nil
}
