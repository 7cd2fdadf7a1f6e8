// Package command implements the gateway's text command protocol: the
// closed set of command records, their canonical text codec, the dispatcher
// that routes a tokenized line to its record, and the line source that
// feeds the dispatcher.
//
// A command line looks like
//
//	<id>,<session>,<name>,<arg>,...;
//
// and is answered with exactly one response line
//
//	<<echo>,<code>,"<message>";
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a command variant.
type Kind int

// Command kinds.
const (
	KindMoveCam Kind = iota + 1
	KindSetPosition
	KindSetHome
	KindEnable
	KindReleaseBrakes
	KindAutoInit
	KindMoveJoints
	KindJointMove
)

var kindNames = map[Kind]string{
	KindMoveCam:       "move_cam",
	KindSetPosition:   "set_position",
	KindSetHome:       "set_home",
	KindEnable:        "enable",
	KindReleaseBrakes: "release_brakes",
	KindAutoInit:      "auto_init",
	KindMoveJoints:    "move_joints",
	KindJointMove:     "joint_move",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// FieldType is the text codec used for one record field.
type FieldType int

// Field types.
const (
	TypeUint8 FieldType = iota
	TypeUint16
	TypeUint32
	TypeString
	TypeDegrees
	TypeMetres
)

var fieldTypeNames = [...]string{
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeString:  "string",
	TypeDegrees: "degrees",
	TypeMetres:  "metres",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return "unknown"
}

// Field describes one positional field of a record.
type Field struct {
	Name string
	Type FieldType
}

// headerFields lead every record.
var headerFields = []Field{
	{"id", TypeUint32},
	{"session", TypeUint16},
	{"name", TypeString},
}

// Header is common to all records.
type Header struct {
	ID      uint32
	Session uint16
	Name    string
}

// Head returns the record header.
func (h *Header) Head() *Header { return h }

var (
	// ErrFieldCount means the token count does not match the record.
	ErrFieldCount = errors.New("wrong field count")
	// ErrFieldType means a token could not be parsed as its field type.
	ErrFieldType = errors.New("wrong field type")
)

// tokenReader decodes positional tokens. The first error sticks.
type tokenReader struct {
	tokens []string
	pos    int
	err    error
}

func (r *tokenReader) next() string {
	if r.err != nil {
		return ""
	}
	if r.pos >= len(r.tokens) {
		r.err = ErrFieldCount
		return ""
	}
	tok := strings.TrimSpace(r.tokens[r.pos])
	r.pos++
	return tok
}

func (r *tokenReader) fail(t FieldType, tok string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %d %q is not %s", ErrFieldType, r.pos-1, tok, t)
	}
}

func (r *tokenReader) uint(t FieldType, bits int) uint64 {
	tok := r.next()
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(tok, 10, bits)
	if err != nil {
		r.fail(t, tok)
	}
	return v
}

func (r *tokenReader) uint8() uint8 {
	return uint8(r.uint(TypeUint8, 8))
}

func (r *tokenReader) uint16() uint16 {
	return uint16(r.uint(TypeUint16, 16))
}

func (r *tokenReader) uint32() uint32 {
	return uint32(r.uint(TypeUint32, 32))
}

func (r *tokenReader) float(t FieldType) float64 {
	tok := r.next()
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		r.fail(t, tok)
	}
	return v
}

func (r *tokenReader) degrees() float64 {
	return r.float(TypeDegrees)
}

func (r *tokenReader) metres() float64 {
	return r.float(TypeMetres)
}

func (r *tokenReader) string() string {
	return r.next()
}

func (r *tokenReader) header(h *Header) {
	h.ID = r.uint32()
	h.Session = r.uint16()
	h.Name = strings.ToLower(r.string())
}

// done fails unless every token was consumed.
func (r *tokenReader) done() error {
	if r.err == nil && r.pos != len(r.tokens) {
		r.err = ErrFieldCount
	}
	return r.err
}

// tokenWriter encodes fields in canonical text form.
type tokenWriter struct {
	tokens []string
}

func (w *tokenWriter) uint(v uint64) {
	w.tokens = append(w.tokens, strconv.FormatUint(v, 10))
}

func (w *tokenWriter) float(v float64) {
	w.tokens = append(w.tokens, strconv.FormatFloat(v, 'g', -1, 64))
}

func (w *tokenWriter) string(v string) {
	w.tokens = append(w.tokens, v)
}

func (w *tokenWriter) header(h *Header) {
	w.uint(uint64(h.ID))
	w.uint(uint64(h.Session))
	w.string(h.Name)
}

func (w *tokenWriter) join() string {
	return strings.Join(w.tokens, ",")
}
