package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownBot is returned for a name with no descriptor.
	ErrUnknownBot = errors.New("unknown bot")
	// ErrUnknownAction is returned by Control for anything but start, stop and restart.
	ErrUnknownAction = errors.New("unknown action")
)

// Start failure reasons.
const (
	ReasonNotFound = "launch target not found"
	ReasonLogFile  = "log file unavailable"
	ReasonSpawn    = "spawn failed"
	ReasonExited   = "exited immediately"
)

// StartError describes a failed start. Tail holds the last lines of the
// bot's log when the process got far enough to write any.
type StartError struct {
	Bot     string
	Reason  string
	LogPath string
	Tail    []string
	Err     error
}

func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "start %s: %s", e.Bot, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, " (%v)", e.Err)
	}
	return b.String()
}

func (e *StartError) Unwrap() error { return e.Err }
