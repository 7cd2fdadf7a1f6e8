package engine

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

// recordingCloser records Close calls in order.
type recordingCloser struct {
	name string
	log  *[]string
	mu   *sync.Mutex
	err  error
}

func (c recordingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.log = append(*c.log, c.name)
	return c.err
}

// lifecycleEngine wraps a Simulator and records Terminate ordering.
type lifecycleEngine struct {
	*Simulator
	log *[]string
	mu  *sync.Mutex
}

func (e lifecycleEngine) Terminate() {
	e.mu.Lock()
	*e.log = append(*e.log, "terminate")
	e.mu.Unlock()
	e.Simulator.Terminate()
}

func TestNewAdapter_Initializes(t *testing.T) {
	sim := NewSimulator()
	NewAdapter(sim)

	if !sim.Initialized() {
		t.Error("NewAdapter should call Initialize")
	}
}

func TestAdapter_CloseOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	eng := lifecycleEngine{Simulator: NewSimulator(), log: &log, mu: &mu}
	stdin := recordingCloser{name: "stdin", log: &log, mu: &mu}
	stdout := recordingCloser{name: "stdout", log: &log, mu: &mu, err: errors.New("boom")}

	a := NewAdapter(eng, WithStdio(stdin, stdout))
	if err := a.Close(); err == nil {
		t.Error("Close should report the first descriptor error")
	}

	want := []string{"terminate", "stdin", "stdout"}
	if len(log) != len(want) {
		t.Fatalf("close log: got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("close log[%d]: got %q, want %q", i, log[i], want[i])
		}
	}

	// Second Close is a no-op.
	if err := a.Close(); err != nil {
		t.Errorf("second Close: got %v, want nil", err)
	}
	if len(log) != len(want) {
		t.Errorf("second Close should not terminate again, log=%v", log)
	}
}

func TestAdapter_Serialize(t *testing.T) {
	sim := NewSimulator()
	a := NewAdapter(sim, WithMotion(0.5, 0.1))
	sim.Outputs().JointAngles = [6]float64{0, -math.Pi / 2, 0.25, 0, 1, -1}

	got := a.Serialize()
	want := "movej([0,-1.5707963267948966,0.25,0,1,-1],a=0.5,v=0.1)"
	if got != want {
		t.Errorf("Serialize:\n got %s\nwant %s", got, want)
	}
}

func TestAdapter_Debug(t *testing.T) {
	sim := NewSimulator()
	a := NewAdapter(sim, WithMotion(1.2, 0.3))
	sim.Outputs().JointAngles = [6]float64{0, 0, 0, 0, 0, 0}

	got := a.Debug()
	want := "debug: movej([0,0,0,0,0,0],a=1.2,v=0.3)"
	if got != want {
		t.Errorf("Debug:\n got %s\nwant %s", got, want)
	}

	sim.Outputs().JointAngles[1] = -math.Pi / 2
	if got := a.Debug(); !strings.HasPrefix(got, "debug: movej([0,-90") {
		t.Errorf("Debug should print degrees, got %s", got)
	}
}

func TestAdapter_ResetAndClear(t *testing.T) {
	sim := NewSimulator()
	a := NewAdapter(sim)

	in := a.Inputs()
	in.MotionPrimitive = MoveJoints
	in.Joints[3] = 1.5
	in.Height = 0.7

	a.ClearPrimitive()
	if in.MotionPrimitive != NoAction {
		t.Errorf("ClearPrimitive: got %v, want no_action", in.MotionPrimitive)
	}
	if in.Joints[3] != 1.5 {
		t.Error("ClearPrimitive should only touch the primitive")
	}

	a.ResetInputs()
	if *a.Inputs() != (Inputs{}) {
		t.Errorf("ResetInputs: got %+v, want zero", *a.Inputs())
	}
}

func TestAdapter_CurrentPositions(t *testing.T) {
	sim := NewSimulator()
	a := NewAdapter(sim)
	sim.Outputs().Status = StatusRunning
	sim.Outputs().JointAngles = [6]float64{1, 2, 3, 4, 5, 6}

	p := a.CurrentPositions()
	if p.Status != StatusRunning {
		t.Errorf("Status: got %d, want %d", p.Status, StatusRunning)
	}
	if p.Angles[5] != 6 {
		t.Errorf("Angles[5]: got %v, want 6", p.Angles[5])
	}
}

func TestDegreesRadians(t *testing.T) {
	if got := Degrees(math.Pi); math.Abs(got-180) > 1e-12 {
		t.Errorf("Degrees(pi): got %v, want 180", got)
	}
	if got := Radians(90); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("Radians(90): got %v, want pi/2", got)
	}
}
