// Package debug provides the global verbose trace switch
package debug

import (
	"fmt"
	"io"
	"os"
)

// Enabled controls whether verbose arm traces are printed (--verbose)
var Enabled bool

// Out is where traces go. stdout is reserved for protocol responses.
var Out io.Writer = os.Stderr

// Logln prints a message with newline only if verbose mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Fprintln(Out, msg)
	}
}
