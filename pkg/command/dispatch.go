package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/teslashibe/go-armgate/pkg/engine"
)

// MinTokens is the shortest valid command line: id, session and name.
const MinTokens = 3

// variant describes one record type in the dispatch table.
type variant struct {
	kind   Kind
	fields []Field
	make   func() Record
}

var (
	moveCamVariant       = variant{KindMoveCam, moveCamFields, func() Record { return &MoveCam{} }}
	setPositionVariant   = variant{KindSetPosition, setPositionFields, func() Record { return &SetPosition{} }}
	setHomeVariant       = variant{KindSetHome, modeFields, func() Record { return &SetHome{} }}
	enableVariant        = variant{KindEnable, modeFields, func() Record { return &Enable{} }}
	releaseBrakesVariant = variant{KindReleaseBrakes, modeFields, func() Record { return &ReleaseBrakes{} }}
	autoInitVariant      = variant{KindAutoInit, modeFields, func() Record { return &AutoInit{} }}
	moveJointsVariant    = variant{KindMoveJoints, moveJointsFields, func() Record { return &MoveJoints{} }}
	jointMoveVariant     = variant{KindJointMove, jointMoveFields, func() Record { return &JointMove{} }}
)

// table maps a lower-case wire name to its variants. Names with more than
// one variant are told apart by token count: the first variant whose field
// count matches wins, and the last one is the fallback.
var table = map[string][]variant{
	"move_cam":       {moveCamVariant},
	"set_pos":        {setPositionVariant},
	"set_home":       {setHomeVariant},
	"enable":         {enableVariant},
	"release_brakes": {releaseBrakesVariant},
	"auto_init":      {autoInitVariant},
	"movej":          {moveJointsVariant, jointMoveVariant},
}

// lookup resolves a command name and token count to a variant.
func lookup(name string, ntokens int) (variant, bool) {
	candidates, ok := table[strings.ToLower(name)]
	if !ok {
		return variant{}, false
	}
	for _, v := range candidates {
		if len(v.fields) == ntokens {
			return v, true
		}
	}
	return candidates[len(candidates)-1], true
}

// Names returns the wire names the dispatcher understands.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse builds the record for a tokenized command line.
// It returns ErrUnknownCommand for names missing from the table, or a
// *ParseError when the tokens do not fit the record.
func Parse(tokens []string) (Record, error) {
	if len(tokens) < MinTokens {
		return nil, &ParseError{Err: ErrFieldCount, Fields: headerFields}
	}
	v, ok := lookup(strings.TrimSpace(tokens[2]), len(tokens))
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownCommand, tokens[2])
	}

	rec := v.make()
	r := &tokenReader{tokens: tokens}
	r.header(rec.Head())
	rec.decode(r)
	if err := r.done(); err != nil {
		return nil, &ParseError{Err: err, Fields: v.fields}
	}
	return rec, nil
}

// ErrUnknownCommand is returned by Parse for unrecognized command names.
var ErrUnknownCommand = errors.New("unknown command")

// ParseError reports tokens that do not fit the selected record.
type ParseError struct {
	Err    error
	Fields []Field
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("command format error, %s, fields: %s - types: %s", e.reason(), e.names(), e.types())
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) reason() string {
	if errors.Is(e.Err, ErrFieldType) {
		return "wrong field type/s"
	}
	return "wrong field/s or field type/s"
}

func (e *ParseError) names() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

func (e *ParseError) types() string {
	types := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		types[i] = f.Type.String()
	}
	return strings.Join(types, ",")
}

// Response is the outcome of dispatching one command line.
type Response struct {
	Record Record // nil when parsing failed
	Result Result
	Echo   string
}

// Line renders the protocol response line, without the trailing newline.
func (r Response) Line() string {
	return "<" + r.Echo + "," + r.Result.String() + ";"
}

// Dispatcher routes tokenized command lines to their performers.
type Dispatcher struct {
	inputs func() *engine.Inputs
}

// NewDispatcher creates a dispatcher writing into the registers returned by inputs.
func NewDispatcher(inputs func() *engine.Inputs) *Dispatcher {
	return &Dispatcher{inputs: inputs}
}

// Dispatch parses tokens, runs the matching performer and returns exactly
// one Response. It never panics: unexpected failures are reported as
// format errors.
func (d *Dispatcher) Dispatch(tokens []string) (resp Response) {
	raw := strings.Join(tokens, ",")
	defer func() {
		if p := recover(); p != nil {
			resp = Response{
				Result: Errorf(FormatError, "unknown error in parsing: %v", p),
				Echo:   raw,
			}
		}
	}()

	rec, err := Parse(tokens)
	if err != nil {
		var fe *ParseError
		switch {
		case errors.As(err, &fe):
			return Response{Result: Errorf(FormatError, "%s", fe.Error()), Echo: raw}
		case errors.Is(err, ErrUnknownCommand):
			return Response{Result: Errorf(UnknownCommand, "unknown command found: '%s'", tokens[2]), Echo: raw}
		default:
			return Response{Result: Errorf(InternalError, "%v", err), Echo: raw}
		}
	}

	return Response{
		Record: rec,
		Result: rec.Apply(d.inputs()),
		Echo:   Serialize(rec),
	}
}
