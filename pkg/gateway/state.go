package gateway

import "fmt"

// State is the gateway lifecycle state.
type State int

const (
	Starting State = iota
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Terminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
