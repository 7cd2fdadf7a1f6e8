package command

import (
	"fmt"
	"strconv"
)

// Code is the numeric status reported on every protocol response line.
type Code int

// Result codes. Per-command errors are reported inline, never fatal.
const (
	OK              Code = 0
	FormatError     Code = 1
	UnknownCommand  Code = 2
	InvalidInput    Code = 3
	UnknownPosition Code = 4
	InternalError   Code = 5
)

var codeNames = map[Code]string{
	OK:              "ok",
	FormatError:     "format_error",
	UnknownCommand:  "unknown_command",
	InvalidInput:    "invalid_input",
	UnknownPosition: "unknown_position",
	InternalError:   "internal_error",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "code_" + strconv.Itoa(int(c))
}

// Result is the outcome of one dispatched command.
type Result struct {
	Code    Code
	Message string
}

// Success returns an OK result with the conventional message.
func Success() Result {
	return Result{Code: OK, Message: "success"}
}

// Errorf builds a failing result.
func Errorf(code Code, format string, args ...any) Result {
	return Result{Code: code, Message: fmt.Sprintf(format, args...)}
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Code == OK
}

// String renders the result as it appears on the wire: code,"message".
func (r Result) String() string {
	return strconv.Itoa(int(r.Code)) + `,"` + r.Message + `"`
}
