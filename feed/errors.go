package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrRetryDisabled is wrapped by the error Listen returns when a
	// transport failure occurs while retry is disabled.
	ErrRetryDisabled = errors.New("retry disabled")
	// ErrTerminated is returned by Listen on a consumer whose retry was
	// disabled by an earlier failure. Construct a new consumer to resume.
	ErrTerminated = errors.New("consumer terminated")
	// ErrAlreadyListening is returned when Listen or Query is called while
	// another call is in progress on the same consumer.
	ErrAlreadyListening = errors.New("consumer already running")
)

// SessionErrorKind classifies a session failure.
type SessionErrorKind string

const (
	// SessionConnect means no response was received.
	SessionConnect SessionErrorKind = "connect"
	// SessionStream means the response body failed mid-stream.
	SessionStream SessionErrorKind = "stream"
)

// SessionError reports a transport failure of one stream session.
type SessionError struct {
	Kind   SessionErrorKind
	Cursor Cursor
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("changes %s failure at cursor %q: %v", e.Kind, e.Cursor, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// ViewError reports a failed pre-fetch query.
type ViewError struct {
	View string
	Err  error
}

func (e *ViewError) Error() string {
	return fmt.Sprintf("view %q: %v", e.View, e.Err)
}

func (e *ViewError) Unwrap() error {
	return e.Err
}
