// Package engine wraps the fixed-step motion engine that turns command
// registers into joint targets for the arm.
//
// The engine itself is external and opaque. It exchanges data with the
// gateway through two plain register blocks: Inputs, written by command
// performers before Step, and Outputs, read after Step.
package engine

import "github.com/teslashibe/go-armgate/pkg/status"

// Primitive selects the motion the engine should produce on the next Step.
type Primitive float64

// Motion primitives understood by the engine.
const (
	NoAction Primitive = iota
	Enable
	ReleaseBrakes
	AutoInit
	SetHome
	SetPosition
	MoveJoints
	JointMove
	MoveCam
)

var primitiveNames = map[Primitive]string{
	NoAction:      "no_action",
	Enable:        "enable",
	ReleaseBrakes: "release_brakes",
	AutoInit:      "auto_init",
	SetHome:       "set_home",
	SetPosition:   "set_position",
	MoveJoints:    "move_joints",
	JointMove:     "joint_move",
	MoveCam:       "move_cam",
}

func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return "unknown"
}

// Named poses for the SetPosition primitive.
const (
	PositionNone    = 0
	PositionHome    = 1
	PositionGiraffe = 2
)

// Arm status codes reported in Outputs.Status and on the publish frame.
const (
	StatusIdle     = 0
	StatusEnabled  = 1
	StatusRunning  = 2
	StatusMoving   = 3
	StatusFault    = 4
	StatusStopping = 5
)

// Inputs is the engine's input register block. All angles in radians.
type Inputs struct {
	MotionPrimitive Primitive
	Joints          [status.Joints]float64
	Pan             float64
	Tilt            float64
	Height          float64 // metres
	JointID         float64
	JointDir        float64
	Position        float64
}

// Outputs is the engine's output register block.
type Outputs struct {
	Status      float64
	JointAngles [status.Joints]float64 // radians
	CommandFlag float64
}

// Engine is the fixed-step motion engine boundary.
//
// Step must be deterministic given the register contents and the engine's
// own internal state.
type Engine interface {
	Initialize()
	Step()
	Terminate()
	Inputs() *Inputs
	Outputs() *Outputs
}
