package engine

import (
	"math"
	"testing"
)

func newSim() *Simulator {
	s := NewSimulator()
	s.Initialize()
	return s
}

func TestSimulator_NoActionKeepsFlagLow(t *testing.T) {
	s := newSim()
	s.Step()

	if s.Outputs().CommandFlag != 0 {
		t.Errorf("CommandFlag: got %v, want 0", s.Outputs().CommandFlag)
	}
	if s.Steps() != 1 {
		t.Errorf("Steps: got %d, want 1", s.Steps())
	}
}

func TestSimulator_ModePrimitives(t *testing.T) {
	tests := []struct {
		prim Primitive
		want float64
	}{
		{Enable, StatusEnabled},
		{ReleaseBrakes, StatusRunning},
		{AutoInit, StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.prim.String(), func(t *testing.T) {
			s := newSim()
			s.Inputs().MotionPrimitive = tt.prim
			s.Step()

			if s.Outputs().Status != tt.want {
				t.Errorf("Status: got %v, want %v", s.Outputs().Status, tt.want)
			}
			if s.Outputs().CommandFlag != 0 {
				t.Error("mode primitives must not raise the command flag")
			}
		})
	}
}

func TestSimulator_MoveJoints(t *testing.T) {
	s := newSim()
	s.Inputs().MotionPrimitive = MoveJoints
	s.Inputs().Joints = [6]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	s.Step()

	if s.Outputs().CommandFlag != 1 {
		t.Fatalf("CommandFlag: got %v, want 1", s.Outputs().CommandFlag)
	}
	if s.Outputs().JointAngles != s.Inputs().Joints {
		t.Errorf("JointAngles: got %v, want %v", s.Outputs().JointAngles, s.Inputs().Joints)
	}

	// Flag is raised for one step only.
	s.Inputs().MotionPrimitive = NoAction
	s.Step()
	if s.Outputs().CommandFlag != 0 {
		t.Errorf("CommandFlag after idle step: got %v, want 0", s.Outputs().CommandFlag)
	}
	if s.Outputs().Status != StatusRunning {
		t.Errorf("Status after move settles: got %v, want %v", s.Outputs().Status, StatusRunning)
	}
}

func TestSimulator_JointMove(t *testing.T) {
	s := newSim()
	s.Inputs().MotionPrimitive = JointMove
	s.Inputs().JointID = 2
	s.Inputs().JointDir = 0.5
	s.Step()
	s.Step() // inputs still set: moves again

	if got := s.Outputs().JointAngles[2]; got != 1.0 {
		t.Errorf("JointAngles[2]: got %v, want 1.0", got)
	}
}

func TestSimulator_JointMoveBadID(t *testing.T) {
	s := newSim()
	s.Inputs().MotionPrimitive = JointMove
	s.Inputs().JointID = 9
	s.Step()

	if s.Outputs().CommandFlag != 0 {
		t.Error("out-of-range joint id must not produce a command")
	}
}

func TestSimulator_HomeAndGiraffe(t *testing.T) {
	s := newSim()

	s.Inputs().MotionPrimitive = MoveJoints
	s.Inputs().Joints = [6]float64{1, 1, 1, 1, 1, 1}
	s.Step()

	s.Inputs().MotionPrimitive = SetHome
	s.Step()

	s.Inputs().MotionPrimitive = SetPosition
	s.Inputs().Position = PositionGiraffe
	s.Step()
	if s.Outputs().JointAngles != GiraffePose {
		t.Errorf("giraffe: got %v, want %v", s.Outputs().JointAngles, GiraffePose)
	}

	s.Inputs().Position = PositionHome
	s.Step()
	want := [6]float64{1, 1, 1, 1, 1, 1}
	if s.Outputs().JointAngles != want {
		t.Errorf("home: got %v, want %v", s.Outputs().JointAngles, want)
	}
}

func TestSimulator_MoveCam(t *testing.T) {
	s := newSim()
	s.Inputs().MotionPrimitive = MoveCam
	s.Inputs().Pan = 0.3
	s.Inputs().Tilt = -0.2
	s.Inputs().Height = camBaseHeight
	s.Step()

	out := s.Outputs()
	if out.JointAngles[0] != 0.3 || out.JointAngles[4] != -0.2 {
		t.Errorf("pan/tilt: got %v", out.JointAngles)
	}
	if math.Abs(out.JointAngles[1]) > 1e-12 {
		t.Errorf("shoulder at base height: got %v, want 0", out.JointAngles[1])
	}
}

func TestSimulator_Terminate(t *testing.T) {
	s := newSim()
	s.Terminate()
	if !s.Terminated() {
		t.Error("Terminated should be true")
	}
}

func TestPrimitive_String(t *testing.T) {
	if MoveJoints.String() != "move_joints" {
		t.Errorf("got %q, want move_joints", MoveJoints.String())
	}
	if Primitive(42).String() != "unknown" {
		t.Errorf("got %q, want unknown", Primitive(42).String())
	}
}
