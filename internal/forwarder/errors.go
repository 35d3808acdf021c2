package forwarder

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingCredential means the listener identity is not configured.
	// It needs operator action and is never retried.
	ErrMissingCredential = errors.New("listener credential is missing")
	// ErrUnauthorized means the backend rejected the credential. Fatal.
	ErrUnauthorized = errors.New("listener credential rejected")
	// ErrDisconnected ends a listening session; the engine reconnects.
	ErrDisconnected = errors.New("backend disconnected")

	// ErrAlreadyMember is returned by Join when nothing needs doing.
	ErrAlreadyMember = errors.New("already a member")
	// ErrPrivate is returned by Join for a channel the identity cannot see.
	ErrPrivate = errors.New("channel is private")
	// ErrNotMember is returned by backends that cannot join by themselves.
	ErrNotMember = errors.New("not a member of the channel")
	// ErrNotFound is returned by Resolve for an unknown identifier.
	ErrNotFound = errors.New("channel not found")

	// ErrThreadNotFound is returned by Send when the destination thread
	// rejected the message.
	ErrThreadNotFound = errors.New("message thread not found")
)

// RateLimitError is returned by Send when the backend asks to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.RetryAfter)
}

// IsFatal reports whether err must stop the engine instead of reconnecting.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrUnauthorized)
}
