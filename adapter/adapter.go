// Package adapter defines the downstream notification boundary.
//
// Adapters forward change records to other systems as they arrive. The
// follow command owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/sluice/feed"
	"github.com/pithecene-io/sluice/types"
)

// EventTypeChange is the event_type of every ChangeEvent.
const EventTypeChange = "change"

// ChangeEvent is the payload published for each change record.
type ChangeEvent struct {
	ContractVersion string          `json:"contract_version"`
	EventType       string          `json:"event_type"` // always "change"
	Feed            string          `json:"feed"`
	Database        string          `json:"database,omitempty"`
	Seq             string          `json:"seq"`
	ID              string          `json:"id,omitempty"`
	Deleted         bool            `json:"deleted,omitempty"`
	Doc             json.RawMessage `json:"doc,omitempty"`
	ReceivedAt      string          `json:"received_at"` // RFC 3339
}

// NewChangeEvent builds the payload for rec. seq is the consumer cursor
// after rec, so records without their own sequence carry the last one seen.
func NewChangeEvent(meta types.FeedMeta, rec *feed.Record, seq feed.Cursor, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeChange,
		Feed:            meta.Name,
		Database:        meta.Database,
		Seq:             seq.String(),
		ID:              rec.ID,
		Deleted:         rec.Deleted,
		Doc:             rec.Doc,
		ReceivedAt:      at.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes change events to a downstream system.
type Adapter interface {
	// Publish sends one change event.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ChangeEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls fn up to 1+retries times with exponential backoff starting
// at base. It stops early when ctx is done or when permanent reports the
// error as non-retriable. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, base time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-t.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
