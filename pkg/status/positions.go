package status

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PositionsSize is the byte width of an encoded CurrentPositions frame:
// one status byte followed by six little-endian doubles.
const PositionsSize = 1 + Joints*8

// CurrentPositions is what subscribers of the status port receive every tick.
type CurrentPositions struct {
	Status uint8   `json:"status"`
	Angles Vector6 `json:"angles"` // radians
}

// MarshalBinary encodes p into a PositionsSize frame.
func (p CurrentPositions) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PositionsSize)
	p.put(buf)
	return buf, nil
}

// AppendBinary appends the encoded frame to dst.
func (p CurrentPositions) AppendBinary(dst []byte) ([]byte, error) {
	n := len(dst)
	dst = append(dst, make([]byte, PositionsSize)...)
	p.put(dst[n:])
	return dst, nil
}

func (p CurrentPositions) put(buf []byte) {
	buf[0] = p.Status
	for i, a := range p.Angles {
		binary.LittleEndian.PutUint64(buf[1+i*8:], math.Float64bits(a))
	}
}

// UnmarshalBinary decodes a PositionsSize frame.
func (p *CurrentPositions) UnmarshalBinary(buf []byte) error {
	if len(buf) < PositionsSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortFrame, len(buf), PositionsSize)
	}
	p.Status = buf[0]
	for i := range p.Angles {
		p.Angles[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[1+i*8:]))
	}
	return nil
}
