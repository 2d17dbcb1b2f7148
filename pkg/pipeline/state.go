package pipeline

import (
	"fmt"
	"strings"
)

// State is the stage the driver is in for the current frame
type State int

const (
	Idle State = iota
	Loading
	Converting
	WindowUpdate
	StatsCompute
	Marking
	Done
)

var stateNames = [...]string{
	Idle:         "idle",
	Loading:      "loading",
	Converting:   "converting",
	WindowUpdate: "window-update",
	StatsCompute: "stats-compute",
	Marking:      "marking",
	Done:         "done",
}

func (s State) String() string {
	if s < Idle || s > Done {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Depth selects how far each frame travels through the pipeline
type Depth int

const (
	// FullStatistics pushes every frame into the window and marks it
	FullStatistics Depth = iota

	// DecodeOnly stops after intensity conversion. It is used to measure
	// decode and conversion throughput.
	DecodeOnly
)

func (d Depth) String() string {
	switch d {
	case FullStatistics:
		return "full"
	case DecodeOnly:
		return "decode-only"
	default:
		return fmt.Sprintf("Depth(%d)", int(d))
	}
}

// ParseDepth converts a depth name into a Depth
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full", "full-statistics", "stats":
		return FullStatistics, nil
	case "decode-only", "decode":
		return DecodeOnly, nil
	default:
		return FullStatistics, fmt.Errorf("unknown processing depth %q", s)
	}
}

// MarshalText lets the depth round-trip through YAML config files
func (d Depth) MarshalText() ([]byte, error) {
	switch d {
	case FullStatistics, DecodeOnly:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("unknown processing depth %d", int(d))
	}
}

// UnmarshalText parses a depth name
func (d *Depth) UnmarshalText(text []byte) error {
	parsed, err := ParseDepth(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
