// Package runtime drives one follow session: it connects a feed consumer to
// the ingestion policy, the downstream adapter, stdout and checkpoints, and
// reports how the session ended.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/sluice/feed"
)

// OutcomeStatus classifies how a follow session ended.
type OutcomeStatus string

const (
	// OutcomeStopped means the caller cancelled the session (signal).
	OutcomeStopped OutcomeStatus = "stopped"
	// OutcomeTerminated means the consumer gave up: retry was disabled after
	// a failure, or a pre-fetch view failed.
	OutcomeTerminated OutcomeStatus = "terminated"
	// OutcomeSinkFailure means a record could not be persisted.
	OutcomeSinkFailure OutcomeStatus = "sink_failure"
)

// Exit codes for the follow command.
const (
	ExitCodeOK          = 0
	ExitCodeConfig      = 1
	ExitCodeTerminated  = 2
	ExitCodeSinkFailure = 3
)

// Outcome is the final state of a follow session.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// ExitCode maps the outcome to a process exit code.
func (o *Outcome) ExitCode() int {
	switch o.Status {
	case OutcomeStopped:
		return ExitCodeOK
	case OutcomeSinkFailure:
		return ExitCodeSinkFailure
	default:
		return ExitCodeTerminated
	}
}

// DetermineOutcome classifies the session end. sinkErr takes precedence:
// it is the reason the session context was cancelled.
func DetermineOutcome(listenErr, sinkErr error) *Outcome {
	switch {
	case sinkErr != nil:
		return &Outcome{Status: OutcomeSinkFailure, Message: sinkErr.Error()}
	case listenErr == nil, errors.Is(listenErr, context.Canceled):
		return &Outcome{Status: OutcomeStopped, Message: "follow stopped"}
	case errors.Is(listenErr, feed.ErrRetryDisabled):
		return &Outcome{Status: OutcomeTerminated, Message: listenErr.Error()}
	default:
		var ve *feed.ViewError
		if errors.As(listenErr, &ve) {
			return &Outcome{Status: OutcomeTerminated, Message: fmt.Sprintf("pre-fetch failed: %v", ve)}
		}
		return &Outcome{Status: OutcomeTerminated, Message: listenErr.Error()}
	}
}
