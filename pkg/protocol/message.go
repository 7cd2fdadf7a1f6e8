// Package protocol defines the JSON telemetry messages armgate streams to
// diagnostic websocket clients and serves from its HTTP API.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-armgate/pkg/status"
)

// MessageType identifies the type of telemetry message
type MessageType string

const (
	TypeStatus    MessageType = "status"    // Freshest arm status frame
	TypePositions MessageType = "positions" // Current positions published to subscribers
	TypeResponse  MessageType = "response"  // Command response line
	TypeState     MessageType = "state"     // Gateway lifecycle state
)

// Message is the base wrapper for all telemetry messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// StatusData carries the freshest decoded status frame.
type StatusData struct {
	Frame   *status.Frame `json:"frame"`
	Frames  uint64        `json:"frames"`  // Complete frames received so far
	Skipped uint64        `json:"skipped"` // Frames superseded before a tick saw them
}

// PositionsData mirrors the binary frame sent on the status port.
type PositionsData struct {
	Status  uint8      `json:"status"`
	Angles  [6]float64 `json:"angles"`  // Radians
	Degrees [6]float64 `json:"degrees"` // Same angles in degrees
}

// ResponseData describes one dispatched command.
type ResponseData struct {
	Command string `json:"command"` // Canonical command echo
	Code    int    `json:"code"`
	Result  string `json:"result"` // Code name, e.g. "invalid_input"
	Message string `json:"message"`
	Line    string `json:"line"` // Exact line written to stdout
}

// StateData reports the gateway lifecycle state.
type StateData struct {
	State           string `json:"state"`
	RunID           string `json:"run_id"`
	ArmConnected    bool   `json:"arm_connected"`
	StatusConnected bool   `json:"status_connected"`
}
