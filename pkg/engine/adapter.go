package engine

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/teslashibe/go-armgate/pkg/status"
)

// Default motion limits for generated movej commands.
const (
	DefaultAcceleration = 0.5 // rad/s^2
	DefaultVelocity     = 0.1 // rad/s
)

// Adapter owns an Engine and its register blocks for the lifetime of the
// gateway. It is not safe for concurrent use; the control loop serializes
// all access.
type Adapter struct {
	engine       Engine
	acceleration float64
	velocity     float64
	stdio        []io.Closer
	closed       bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMotion sets the acceleration (rad/s^2) and velocity (rad/s) written
// into every movej command.
func WithMotion(acceleration, velocity float64) Option {
	return func(a *Adapter) {
		a.acceleration = acceleration
		a.velocity = velocity
	}
}

// WithStdio registers descriptors to close after Terminate, so the engine
// cannot write to them once the gateway has shut down.
func WithStdio(closers ...io.Closer) Option {
	return func(a *Adapter) {
		a.stdio = append(a.stdio, closers...)
	}
}

// NewAdapter wraps e and calls its Initialize.
func NewAdapter(e Engine, opts ...Option) *Adapter {
	a := &Adapter{
		engine:       e,
		acceleration: DefaultAcceleration,
		velocity:     DefaultVelocity,
	}
	for _, opt := range opts {
		opt(a)
	}
	e.Initialize()
	return a
}

// Inputs returns the engine's input registers.
func (a *Adapter) Inputs() *Inputs {
	return a.engine.Inputs()
}

// Outputs returns the engine's output registers.
func (a *Adapter) Outputs() *Outputs {
	return a.engine.Outputs()
}

// Step advances the engine by one fixed step.
func (a *Adapter) Step() {
	a.engine.Step()
}

// CommandReady reports whether this step produced a command for the arm.
func (a *Adapter) CommandReady() bool {
	return a.engine.Outputs().CommandFlag > 0
}

// ClearPrimitive drops the pending motion primitive after emission.
func (a *Adapter) ClearPrimitive() {
	a.engine.Inputs().MotionPrimitive = NoAction
}

// ResetInputs zeroes the whole input register block.
func (a *Adapter) ResetInputs() {
	*a.engine.Inputs() = Inputs{}
}

// CurrentPositions projects the output registers onto the publish frame.
func (a *Adapter) CurrentPositions() status.CurrentPositions {
	out := a.engine.Outputs()
	return status.CurrentPositions{
		Status: uint8(out.Status),
		Angles: status.Vector6(out.JointAngles),
	}
}

// Serialize renders the output registers as the arm's movej script line.
func (a *Adapter) Serialize() string {
	return a.movej("movej([", func(rad float64) float64 { return rad })
}

// Debug renders the same command with angles in degrees, for humans.
func (a *Adapter) Debug() string {
	return a.movej("debug: movej([", Degrees)
}

func (a *Adapter) movej(prefix string, conv func(float64) float64) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, v := range a.engine.Outputs().JointAngles {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatFloat(conv(v)))
	}
	sb.WriteString("],a=")
	sb.WriteString(formatFloat(a.acceleration))
	sb.WriteString(",v=")
	sb.WriteString(formatFloat(a.velocity))
	sb.WriteByte(')')
	return sb.String()
}

// Close terminates the engine and then closes the registered descriptors.
// Calling Close more than once is a no-op.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.engine.Terminate()

	var firstErr error
	for _, c := range a.stdio {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
