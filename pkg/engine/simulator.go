package engine

import (
	"math"

	"github.com/teslashibe/go-armgate/pkg/status"
)

// GiraffePose is the upright "giraffe" pose in radians.
var GiraffePose = [status.Joints]float64{0, -math.Pi / 2, 0, -math.Pi / 2, 0, 0}

// Camera mount geometry used to turn a move_cam height into a shoulder angle.
const (
	camBaseHeight = 0.5 // metres, height with the shoulder level
	camReach      = 1.2 // metres, shoulder-to-camera arm length
)

// Simulator is a deterministic stand-in for the external motion engine.
// Movement primitives jump straight to the target pose and raise the command
// flag for exactly one step; mode primitives only change the reported status.
type Simulator struct {
	in  Inputs
	out Outputs

	home        [status.Joints]float64
	initialized bool
	terminated  bool
	steps       uint64
}

// NewSimulator creates an uninitialized simulator.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Initialize resets the simulator to the zero pose, idle.
func (s *Simulator) Initialize() {
	s.in = Inputs{}
	s.out = Outputs{Status: StatusIdle}
	s.home = [status.Joints]float64{}
	s.initialized = true
}

// Terminate marks the simulator as shut down.
func (s *Simulator) Terminate() {
	s.terminated = true
	s.out.Status = StatusStopping
}

// Inputs returns the input registers.
func (s *Simulator) Inputs() *Inputs { return &s.in }

// Outputs returns the output registers.
func (s *Simulator) Outputs() *Outputs { return &s.out }

// Initialized reports whether Initialize was called.
func (s *Simulator) Initialized() bool { return s.initialized }

// Terminated reports whether Terminate was called.
func (s *Simulator) Terminated() bool { return s.terminated }

// Steps returns the number of Step calls so far.
func (s *Simulator) Steps() uint64 { return s.steps }

// Step runs one engine cycle.
func (s *Simulator) Step() {
	s.steps++
	s.out.CommandFlag = 0
	if s.out.Status == StatusMoving {
		s.out.Status = StatusRunning
	}

	target := s.out.JointAngles
	move := false

	switch s.in.MotionPrimitive {
	case NoAction:
	case Enable:
		s.out.Status = StatusEnabled
	case ReleaseBrakes, AutoInit:
		s.out.Status = StatusRunning
	case SetHome:
		s.home = s.out.JointAngles
	case SetPosition:
		switch s.in.Position {
		case PositionHome:
			target, move = s.home, true
		case PositionGiraffe:
			target, move = GiraffePose, true
		}
	case MoveJoints:
		target, move = s.in.Joints, true
	case JointMove:
		id := int(s.in.JointID)
		if id >= 0 && id < status.Joints {
			target[id] += s.in.JointDir
			move = true
		}
	case MoveCam:
		target = [status.Joints]float64{}
		target[0] = s.in.Pan
		target[1] = -math.Asin(clamp((s.in.Height-camBaseHeight)/camReach, -1, 1))
		target[4] = s.in.Tilt
		move = true
	default:
		s.out.Status = StatusFault
	}

	if move {
		s.out.JointAngles = target
		s.out.CommandFlag = 1
		s.out.Status = StatusMoving
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Ensure Simulator implements Engine
var _ Engine = (*Simulator)(nil)
