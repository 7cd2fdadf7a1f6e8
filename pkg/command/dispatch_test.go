package command

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/teslashibe/go-armgate/pkg/engine"
)

func newDispatcher() (*Dispatcher, *engine.Inputs) {
	in := &engine.Inputs{}
	return NewDispatcher(func() *engine.Inputs { return in }), in
}

func TestDispatch_WellFormedRoundTrip(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
	}{
		{"1,7,move_cam,10,-20.5,0.75", KindMoveCam},
		{"2,7,set_pos,home", KindSetPosition},
		{"3,7,set_pos,giraffe", KindSetPosition},
		{"4,7,set_home", KindSetHome},
		{"5,7,enable", KindEnable},
		{"6,7,release_brakes", KindReleaseBrakes},
		{"7,7,auto_init", KindAutoInit},
		{"8,7,movej,0,-90,45.5,0,90,180", KindMoveJoints},
		{"9,7,movej,3,-12.25", KindJointMove},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d, _ := newDispatcher()
			resp := d.Dispatch(Tokenize(tt.line))

			if resp.Result.Code != OK {
				t.Fatalf("code: got %v (%s), want ok", resp.Result.Code, resp.Result.Message)
			}
			if resp.Record.Kind() != tt.kind {
				t.Errorf("kind: got %v, want %v", resp.Record.Kind(), tt.kind)
			}
			if resp.Echo != tt.line {
				t.Errorf("echo: got %q, want %q", resp.Echo, tt.line)
			}

			// Serialize is idempotent through Parse.
			again, err := Parse(Tokenize(resp.Echo))
			if err != nil {
				t.Fatalf("reparse: %v", err)
			}
			if got := Serialize(again); got != resp.Echo {
				t.Errorf("round trip: got %q, want %q", got, resp.Echo)
			}
		})
	}
}

func TestDispatch_CanonicalEcho(t *testing.T) {
	d, _ := newDispatcher()
	resp := d.Dispatch(Tokenize(" 01 , 7 , MoveJ , 1 , 1.50 ;"))

	if resp.Result.Code != OK {
		t.Fatalf("code: got %v (%s), want ok", resp.Result.Code, resp.Result.Message)
	}
	if want := "1,7,movej,1,1.5"; resp.Echo != want {
		t.Errorf("echo: got %q, want %q", resp.Echo, want)
	}
}

func TestDispatch_EnableScenario(t *testing.T) {
	d, in := newDispatcher()
	resp := d.Dispatch(Tokenize("1,7,enable,;"))

	if resp.Result.Code != OK {
		t.Fatalf("code: got %v, want ok", resp.Result.Code)
	}
	if in.MotionPrimitive != engine.Enable {
		t.Errorf("primitive: got %v, want enable", in.MotionPrimitive)
	}
	if want := `<1,7,enable,0,"success";`; resp.Line() != want {
		t.Errorf("line: got %s, want %s", resp.Line(), want)
	}
}

func TestDispatch_CaseInsensitive(t *testing.T) {
	d, in := newDispatcher()
	resp := d.Dispatch(Tokenize("1,7,Release_BRAKES"))

	if resp.Result.Code != OK {
		t.Fatalf("code: got %v, want ok", resp.Result.Code)
	}
	if in.MotionPrimitive != engine.ReleaseBrakes {
		t.Errorf("primitive: got %v, want release_brakes", in.MotionPrimitive)
	}
}

func TestDispatch_MovejDisambiguation(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind Kind
		prim engine.Primitive
	}{
		{"nine tokens", "1,7,movej,1,2,3,4,5,6", KindMoveJoints, engine.MoveJoints},
		{"five tokens", "1,7,movej,2,30", KindJointMove, engine.JointMove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, in := newDispatcher()
			resp := d.Dispatch(Tokenize(tt.line))
			if resp.Result.Code != OK {
				t.Fatalf("code: got %v (%s), want ok", resp.Result.Code, resp.Result.Message)
			}
			if resp.Record.Kind() != tt.kind {
				t.Errorf("kind: got %v, want %v", resp.Record.Kind(), tt.kind)
			}
			if in.MotionPrimitive != tt.prim {
				t.Errorf("primitive: got %v, want %v", in.MotionPrimitive, tt.prim)
			}
		})
	}
}

func TestDispatch_MovejShortGoesToJointMove(t *testing.T) {
	d, _ := newDispatcher()
	resp := d.Dispatch(Tokenize("1,7,movej,1,2,3"))

	if resp.Result.Code != FormatError {
		t.Fatalf("code: got %v, want format_error", resp.Result.Code)
	}
	if !strings.Contains(resp.Result.Message, "fields: id,session,name,joint_id,dir") {
		t.Errorf("message should list joint_move fields: %s", resp.Result.Message)
	}
}

func TestDispatch_JointValuesConverted(t *testing.T) {
	d, in := newDispatcher()
	d.Dispatch(Tokenize("1,7,movej,90,0,0,0,0,-180"))

	if math.Abs(in.Joints[0]-math.Pi/2) > 1e-12 {
		t.Errorf("joint0: got %v, want pi/2", in.Joints[0])
	}
	if math.Abs(in.Joints[5]+math.Pi) > 1e-12 {
		t.Errorf("joint5: got %v, want -pi", in.Joints[5])
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, in := newDispatcher()
	line := "4,7,dance,fast"
	resp := d.Dispatch(Tokenize(line))

	if resp.Result.Code != UnknownCommand {
		t.Fatalf("code: got %v, want unknown_command", resp.Result.Code)
	}
	if resp.Record != nil {
		t.Error("Record should be nil on failure")
	}
	want := `<4,7,dance,fast,2,"unknown command found: 'dance'";`
	if resp.Line() != want {
		t.Errorf("line:\n got %s\nwant %s", resp.Line(), want)
	}
	if *in != (engine.Inputs{}) {
		t.Error("failed commands must not touch the registers")
	}
}

func TestDispatch_FormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
		fields string
		types  string
	}{
		{
			name:   "bad type",
			line:   "1,7,move_cam,left,0,1",
			reason: "wrong field type/s",
			fields: "id,session,name,pan,tilt,height",
			types:  "uint32,uint16,string,degrees,degrees,metres",
		},
		{
			name:   "too many",
			line:   "1,7,enable,now",
			reason: "wrong field/s or field type/s",
			fields: "id,session,name",
			types:  "uint32,uint16,string",
		},
		{
			name:   "too few",
			line:   "1,7,set_pos",
			reason: "wrong field/s or field type/s",
			fields: "id,session,name,position",
			types:  "uint32,uint16,string,string",
		},
		{
			name:   "bad id",
			line:   "x,7,enable",
			reason: "wrong field type/s",
			fields: "id,session,name",
			types:  "uint32,uint16,string",
		},
		{
			name:   "joint id overflow",
			line:   "1,7,movej,300,1",
			reason: "wrong field type/s",
			fields: "id,session,name,joint_id,dir",
			types:  "uint32,uint16,string,uint8,degrees",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDispatcher()
			resp := d.Dispatch(Tokenize(tt.line))

			if resp.Result.Code != FormatError {
				t.Fatalf("code: got %v, want format_error", resp.Result.Code)
			}
			msg := resp.Result.Message
			if !strings.Contains(msg, tt.reason) {
				t.Errorf("message %q missing reason %q", msg, tt.reason)
			}
			if !strings.Contains(msg, "fields: "+tt.fields) {
				t.Errorf("message %q missing fields %q", msg, tt.fields)
			}
			if !strings.Contains(msg, "types: "+tt.types) {
				t.Errorf("message %q missing types %q", msg, tt.types)
			}
			if !strings.HasPrefix(resp.Line(), "<"+tt.line+",1,") {
				t.Errorf("line should echo the input verbatim: %s", resp.Line())
			}
		})
	}
}

func TestDispatch_TooShort(t *testing.T) {
	d, _ := newDispatcher()
	resp := d.Dispatch([]string{"1", "7"})

	if resp.Result.Code != FormatError {
		t.Errorf("code: got %v, want format_error", resp.Result.Code)
	}
}

func TestDispatch_DomainErrors(t *testing.T) {
	tests := []struct {
		line string
		code Code
	}{
		{"1,7,movej,0,0,400,0,0,0", InvalidInput},
		{"1,7,movej,6,10", InvalidInput},
		{"1,7,movej,0,-361", InvalidInput},
		{"1,7,movej,0,NaN", InvalidInput},
		{"1,7,move_cam,50,0,1", InvalidInput},
		{"1,7,move_cam,0,-95,1", InvalidInput},
		{"1,7,move_cam,0,0,2", InvalidInput},
		{"1,7,set_pos,sideways", UnknownPosition},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d, in := newDispatcher()
			resp := d.Dispatch(Tokenize(tt.line))

			if resp.Result.Code != tt.code {
				t.Fatalf("code: got %v (%s), want %v", resp.Result.Code, resp.Result.Message, tt.code)
			}
			if resp.Result.Code == FormatError {
				t.Error("domain errors must be distinct from format_error")
			}
			if in.MotionPrimitive != engine.NoAction {
				t.Errorf("rejected command set primitive %v", in.MotionPrimitive)
			}
			// Rejected records still echo their canonical form.
			if !strings.HasPrefix(resp.Line(), "<"+resp.Echo+",") {
				t.Errorf("line: %s", resp.Line())
			}
		})
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher(func() *engine.Inputs { return nil })
	resp := d.Dispatch(Tokenize("1,7,enable"))

	if resp.Result.Code != FormatError {
		t.Fatalf("code: got %v, want format_error", resp.Result.Code)
	}
	if !strings.Contains(resp.Result.Message, "unknown error in parsing") {
		t.Errorf("message: %s", resp.Result.Message)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(Tokenize("1,7,wave"))
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("got %v, want ErrUnknownCommand", err)
	}

	_, err = Parse(Tokenize("1,7,movej,a,1"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if !errors.Is(err, ErrFieldType) {
		t.Errorf("got %v, want ErrFieldType", err)
	}
}

func TestLookup(t *testing.T) {
	v, ok := lookup("MOVEJ", 9)
	if !ok || v.kind != KindMoveJoints {
		t.Errorf("lookup(MOVEJ, 9): got %v %v", v.kind, ok)
	}
	v, ok = lookup("movej", 4)
	if !ok || v.kind != KindJointMove {
		t.Errorf("lookup(movej, 4): got %v %v", v.kind, ok)
	}
	if _, ok := lookup("set_position", 4); ok {
		t.Error("set_position is not a wire name")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 7 {
		t.Fatalf("got %d names, want 7: %v", len(names), names)
	}
	if names[0] != "auto_init" {
		t.Errorf("names should be sorted, got %v", names)
	}
}

func TestResultString(t *testing.T) {
	r := Errorf(InvalidInput, "joint %d", 3)
	if r.String() != `3,"joint 3"` {
		t.Errorf("got %s", r.String())
	}
	if r.OK() {
		t.Error("OK should be false")
	}
	if Code(99).String() != "code_99" {
		t.Errorf("got %s", Code(99).String())
	}
}
