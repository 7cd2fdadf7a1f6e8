package command

import (
	"math"
	"strings"

	"github.com/teslashibe/go-armgate/pkg/engine"
	"github.com/teslashibe/go-armgate/pkg/status"
)

// Parameter limits enforced by the performers.
const (
	MaxJointDegrees = 360.0
	MaxPanDegrees   = 45.0
	MaxTiltDegrees  = 90.0
	MaxCamHeight    = 1.5 // metres
)

// Record is one parsed command. Records are built only by a successful
// parse and are not modified afterwards.
type Record interface {
	Kind() Kind
	Head() *Header
	Fields() []Field
	Performer

	decode(r *tokenReader)
	encode(w *tokenWriter)
}

// Performer applies a parsed command to the engine input registers and
// summarizes the outcome. Performers keep no state between ticks.
type Performer interface {
	Apply(in *engine.Inputs) Result
}

// Serialize renders a record in canonical text form. Parsing the result
// yields an equal record.
func Serialize(rec Record) string {
	w := &tokenWriter{}
	w.header(rec.Head())
	rec.encode(w)
	return w.join()
}

func fieldsOf(extra ...Field) []Field {
	return append(append([]Field(nil), headerFields...), extra...)
}

func outOfRange(v, limit float64) bool {
	return math.IsNaN(v) || v < -limit || v > limit
}

// MoveCam points the camera mounted on the wrist.
type MoveCam struct {
	Header
	Pan    float64 // degrees
	Tilt   float64 // degrees
	Height float64 // metres
}

var moveCamFields = fieldsOf(Field{"pan", TypeDegrees}, Field{"tilt", TypeDegrees}, Field{"height", TypeMetres})

func (*MoveCam) Kind() Kind      { return KindMoveCam }
func (*MoveCam) Fields() []Field { return moveCamFields }

func (c *MoveCam) decode(r *tokenReader) {
	c.Pan, c.Tilt, c.Height = r.degrees(), r.degrees(), r.metres()
}

func (c *MoveCam) encode(w *tokenWriter) {
	w.float(c.Pan)
	w.float(c.Tilt)
	w.float(c.Height)
}

// Apply implements Performer.
func (c *MoveCam) Apply(in *engine.Inputs) Result {
	switch {
	case outOfRange(c.Pan, MaxPanDegrees):
		return Errorf(InvalidInput, "pan %g out of range [-%g,%g]", c.Pan, MaxPanDegrees, MaxPanDegrees)
	case outOfRange(c.Tilt, MaxTiltDegrees):
		return Errorf(InvalidInput, "tilt %g out of range [-%g,%g]", c.Tilt, MaxTiltDegrees, MaxTiltDegrees)
	case math.IsNaN(c.Height) || c.Height < 0 || c.Height > MaxCamHeight:
		return Errorf(InvalidInput, "height %g out of range [0,%g]", c.Height, MaxCamHeight)
	}
	in.MotionPrimitive = engine.MoveCam
	in.Pan = engine.Radians(c.Pan)
	in.Tilt = engine.Radians(c.Tilt)
	in.Height = c.Height
	return Success()
}

// SetPosition moves the arm to a named pose.
type SetPosition struct {
	Header
	Position string
}

var setPositionFields = fieldsOf(Field{"position", TypeString})

var namedPositions = map[string]float64{
	"home":    engine.PositionHome,
	"giraffe": engine.PositionGiraffe,
}

func (*SetPosition) Kind() Kind      { return KindSetPosition }
func (*SetPosition) Fields() []Field { return setPositionFields }

func (c *SetPosition) decode(r *tokenReader) {
	c.Position = r.string()
}

func (c *SetPosition) encode(w *tokenWriter) {
	w.string(c.Position)
}

// Apply implements Performer.
func (c *SetPosition) Apply(in *engine.Inputs) Result {
	pos, ok := namedPositions[strings.ToLower(c.Position)]
	if !ok {
		return Errorf(UnknownPosition, "unknown position: '%s'", c.Position)
	}
	in.MotionPrimitive = engine.SetPosition
	in.Position = pos
	return Success()
}

// modeCommand is a command without parameters that only selects a primitive.
type modeCommand struct {
	Header
}

var modeFields = fieldsOf()

func (*modeCommand) Fields() []Field     { return modeFields }
func (*modeCommand) decode(*tokenReader) {}
func (*modeCommand) encode(*tokenWriter) {}

func applyPrimitive(in *engine.Inputs, p engine.Primitive) Result {
	in.MotionPrimitive = p
	return Success()
}

// SetHome records the current pose as home.
type SetHome struct{ modeCommand }

func (*SetHome) Kind() Kind                     { return KindSetHome }
func (*SetHome) Apply(in *engine.Inputs) Result { return applyPrimitive(in, engine.SetHome) }

// Enable powers the arm on.
type Enable struct{ modeCommand }

func (*Enable) Kind() Kind                     { return KindEnable }
func (*Enable) Apply(in *engine.Inputs) Result { return applyPrimitive(in, engine.Enable) }

// ReleaseBrakes releases the joint brakes.
type ReleaseBrakes struct{ modeCommand }

func (*ReleaseBrakes) Kind() Kind { return KindReleaseBrakes }

func (*ReleaseBrakes) Apply(in *engine.Inputs) Result {
	return applyPrimitive(in, engine.ReleaseBrakes)
}

// AutoInit runs the arm's automatic initialization.
type AutoInit struct{ modeCommand }

func (*AutoInit) Kind() Kind                     { return KindAutoInit }
func (*AutoInit) Apply(in *engine.Inputs) Result { return applyPrimitive(in, engine.AutoInit) }

// MoveJoints moves all six joints to absolute angles.
type MoveJoints struct {
	Header
	Joints [status.Joints]float64 // degrees
}

var moveJointsFields = fieldsOf(
	Field{"joint0", TypeDegrees}, Field{"joint1", TypeDegrees}, Field{"joint2", TypeDegrees},
	Field{"joint3", TypeDegrees}, Field{"joint4", TypeDegrees}, Field{"joint5", TypeDegrees},
)

func (*MoveJoints) Kind() Kind      { return KindMoveJoints }
func (*MoveJoints) Fields() []Field { return moveJointsFields }

func (c *MoveJoints) decode(r *tokenReader) {
	for i := range c.Joints {
		c.Joints[i] = r.degrees()
	}
}

func (c *MoveJoints) encode(w *tokenWriter) {
	for _, j := range c.Joints {
		w.float(j)
	}
}

// Apply implements Performer.
func (c *MoveJoints) Apply(in *engine.Inputs) Result {
	for i, j := range c.Joints {
		if outOfRange(j, MaxJointDegrees) {
			return Errorf(InvalidInput, "joint%d angle %g out of range [-%g,%g]", i, j, MaxJointDegrees, MaxJointDegrees)
		}
	}
	in.MotionPrimitive = engine.MoveJoints
	for i, j := range c.Joints {
		in.Joints[i] = engine.Radians(j)
	}
	return Success()
}

// JointMove turns a single joint by a relative angle.
type JointMove struct {
	Header
	JointID uint8
	Dir     float64 // degrees, signed
}

var jointMoveFields = fieldsOf(Field{"joint_id", TypeUint8}, Field{"dir", TypeDegrees})

func (*JointMove) Kind() Kind      { return KindJointMove }
func (*JointMove) Fields() []Field { return jointMoveFields }

func (c *JointMove) decode(r *tokenReader) {
	c.JointID = r.uint8()
	c.Dir = r.degrees()
}

func (c *JointMove) encode(w *tokenWriter) {
	w.uint(uint64(c.JointID))
	w.float(c.Dir)
}

// Apply implements Performer.
func (c *JointMove) Apply(in *engine.Inputs) Result {
	if int(c.JointID) >= status.Joints {
		return Errorf(InvalidInput, "joint_id %d out of range [0,%d]", c.JointID, status.Joints-1)
	}
	if outOfRange(c.Dir, MaxJointDegrees) {
		return Errorf(InvalidInput, "dir %g out of range [-%g,%g]", c.Dir, MaxJointDegrees, MaxJointDegrees)
	}
	in.MotionPrimitive = engine.JointMove
	in.JointID = float64(c.JointID)
	in.JointDir = engine.Radians(c.Dir)
	return Success()
}
