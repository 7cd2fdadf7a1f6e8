// Package status decodes the UR10 real-time status frame and encodes the
// compact current-positions frame broadcast to subscribers.
//
// The arm streams fixed 812-byte frames, big-endian, on its real-time port.
// Every field except the leading message size is an IEEE 754 double.
package status

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Joints is the number of arm joints.
const Joints = 6

// FrameSize is the byte width of one real-time status frame.
const FrameSize = 812

var (
	// ErrShortFrame is returned when fewer than FrameSize bytes are supplied.
	ErrShortFrame = errors.New("status: short frame")
	// ErrFrameSize is returned when the frame's own size field disagrees with FrameSize.
	ErrFrameSize = errors.New("status: unexpected frame size field")
)

// Vector6 holds one value per joint (or per cartesian axis for TCP fields).
type Vector6 [Joints]float64

// Frame mirrors the arm's real-time telemetry layout field by field.
type Frame struct {
	MessageSize      int32       `json:"message_size"`
	Time             float64     `json:"time"`
	TargetPositions  Vector6     `json:"q_target"`
	TargetVelocities Vector6     `json:"qd_target"`
	TargetAccels     Vector6     `json:"qdd_target"`
	TargetCurrents   Vector6     `json:"i_target"`
	TargetMoments    Vector6     `json:"m_target"`
	ActualPositions  Vector6     `json:"q_actual"`
	ActualVelocities Vector6     `json:"qd_actual"`
	ActualCurrents   Vector6     `json:"i_actual"`
	ToolAccel        [3]float64  `json:"tool_acc"`
	Unused           [15]float64 `json:"-"`
	TCPForce         Vector6     `json:"tcp_force"`
	ToolVector       Vector6     `json:"tool_vector"`
	TCPSpeed         Vector6     `json:"tcp_speed"`
	DigitalInputs    float64     `json:"digital_input_bits"`
	MotorTemps       Vector6     `json:"motor_temperatures"`
	ControllerTimer  float64     `json:"controller_timer"`
	TestValue        float64     `json:"test_value"`
	RobotMode        float64     `json:"robot_mode"`
	JointModes       Vector6     `json:"joint_modes"`
}

// frameReader walks a frame buffer one field at a time.
type frameReader struct {
	buf []byte
	off int
}

func (r *frameReader) float() float64 {
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}

func (r *frameReader) floats(dst []float64) {
	for i := range dst {
		dst[i] = r.float()
	}
}

// Decode parses one real-time frame. buf must hold at least FrameSize bytes;
// only the first FrameSize are read.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrShortFrame, len(buf), FrameSize)
	}

	f := &Frame{MessageSize: int32(binary.BigEndian.Uint32(buf))}
	if f.MessageSize != FrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, f.MessageSize)
	}

	r := &frameReader{buf: buf[:FrameSize], off: 4}
	f.Time = r.float()
	r.floats(f.TargetPositions[:])
	r.floats(f.TargetVelocities[:])
	r.floats(f.TargetAccels[:])
	r.floats(f.TargetCurrents[:])
	r.floats(f.TargetMoments[:])
	r.floats(f.ActualPositions[:])
	r.floats(f.ActualVelocities[:])
	r.floats(f.ActualCurrents[:])
	r.floats(f.ToolAccel[:])
	r.floats(f.Unused[:])
	r.floats(f.TCPForce[:])
	r.floats(f.ToolVector[:])
	r.floats(f.TCPSpeed[:])
	f.DigitalInputs = r.float()
	r.floats(f.MotorTemps[:])
	f.ControllerTimer = r.float()
	f.TestValue = r.float()
	f.RobotMode = r.float()
	r.floats(f.JointModes[:])

	return f, nil
}

// Encode is the inverse of Decode. The size field is always FrameSize.
// The simulator and tests use it to produce wire frames.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(buf, FrameSize)
	off := 4
	put := func(vs ...float64) {
		for _, v := range vs {
			binary.BigEndian.PutUint64(buf[off:], math.Float64bits(v))
			off += 8
		}
	}
	put(f.Time)
	put(f.TargetPositions[:]...)
	put(f.TargetVelocities[:]...)
	put(f.TargetAccels[:]...)
	put(f.TargetCurrents[:]...)
	put(f.TargetMoments[:]...)
	put(f.ActualPositions[:]...)
	put(f.ActualVelocities[:]...)
	put(f.ActualCurrents[:]...)
	put(f.ToolAccel[:]...)
	put(f.Unused[:]...)
	put(f.TCPForce[:]...)
	put(f.ToolVector[:]...)
	put(f.TCPSpeed[:]...)
	put(f.DigitalInputs)
	put(f.MotorTemps[:]...)
	put(f.ControllerTimer, f.TestValue, f.RobotMode)
	put(f.JointModes[:]...)
	return buf
}
