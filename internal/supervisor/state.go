package supervisor

import "fmt"

// State is the lifecycle state of a managed bot.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateCrashed
)

// String returns a human-readable state name.
func (s State) String() string {
	names := []string{"stopped", "starting", "running", "crashed"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name as written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = StateStopped
	case "starting":
		*s = StateStarting
	case "running":
		*s = StateRunning
	case "crashed":
		*s = StateCrashed
	default:
		return fmt.Errorf("unknown bot state %q", text)
	}
	return nil
}
