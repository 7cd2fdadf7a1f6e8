package gateway

import "time"

// Stats is a snapshot of the loop counters.
type Stats struct {
	RunID  string `json:"run_id"`
	State  string `json:"state"`
	Uptime string `json:"uptime"`

	Ticks    uint64 `json:"ticks"`
	Overruns uint64 `json:"overruns"`

	Commands       uint64 `json:"commands"`         // Commands dispatched
	Rejected       uint64 `json:"rejected"`         // Dispatched commands with a non-ok result
	DroppedInput   uint64 `json:"dropped_input"`    // Commands dropped on a full queue, plus overlong input lines
	ArmCommands    uint64 `json:"arm_commands"`     // movej lines sent to the arm
	Published      uint64 `json:"published"`        // Position frames published
	StatusFrames   uint64 `json:"status_frames"`    // Complete status frames received
	StatusSkipped  uint64 `json:"status_skipped"`   // Frames superseded within one tick
	StatusErrors   uint64 `json:"status_errors"`    // Frames that failed to decode
	StatusLinkDown bool   `json:"status_link_down"` // Status link failed and is no longer polled

	LastTickDuration time.Duration `json:"last_tick_ns"`
}
