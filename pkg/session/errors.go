package session

import "errors"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")

	// ErrNotReady is returned when FetchOnce is called without a ready session.
	ErrNotReady = errors.New("session not ready")

	// ErrCredentialsRejected means the remote rejected the session cookies.
	ErrCredentialsRejected = errors.New("credentials rejected")

	// ErrUnreachable means the session endpoint could not be reached.
	ErrUnreachable = errors.New("session endpoint unreachable")

	// ErrInvalidSnippet is returned by ParseSnippet for malformed input.
	ErrInvalidSnippet = errors.New("invalid fetch snippet")

	// ErrMissingAmount means the balance response had no amount field.
	ErrMissingAmount = errors.New("response has no amount")
)

// SessionSetupError wraps a failure to establish a session.
type SessionSetupError struct {
	Err error
}

func (e *SessionSetupError) Error() string { return "session setup: " + e.Err.Error() }
func (e *SessionSetupError) Unwrap() error { return e.Err }

// FetchError wraps a failure of a single balance read.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch balance: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }
