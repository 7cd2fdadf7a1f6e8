package protocol

import (
	"math"

	"github.com/teslashibe/go-armgate/pkg/status"
)

// PositionsFrom builds the positions payload, adding degrees for readers.
func PositionsFrom(p status.CurrentPositions) PositionsData {
	data := PositionsData{Status: p.Status, Angles: p.Angles}
	for i, a := range p.Angles {
		data.Degrees[i] = a * 180 / math.Pi
	}
	return data
}

// NewStatusMessage creates a status message
func NewStatusMessage(data StatusData) (*Message, error) {
	return NewMessage(TypeStatus, data)
}

// NewPositionsMessage creates a positions message
func NewPositionsMessage(data PositionsData) (*Message, error) {
	return NewMessage(TypePositions, data)
}

// NewResponseMessage creates a command response message
func NewResponseMessage(data ResponseData) (*Message, error) {
	return NewMessage(TypeResponse, data)
}

// NewStateMessage creates a state message
func NewStateMessage(data StateData) (*Message, error) {
	return NewMessage(TypeState, data)
}
