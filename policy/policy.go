// Package policy controls how change records reach the archive sink.
//
// Change records are never dropped: every policy either persists a record,
// keeps it buffered for a later flush, or returns an error that stops the
// follower.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/sluice/feed"
)

// Entry is one change record as handed to a policy.
type Entry struct {
	// Cursor is the consumer position after Record.
	Cursor feed.Cursor
	// Record is the decoded change line.
	Record *feed.Record
	// ReceivedAt is when the record was read from the stream.
	ReceivedAt time.Time
}

// Size is the buffer accounting size of the entry in bytes.
func (e *Entry) Size() int64 {
	if e.Record == nil {
		return 0
	}
	return int64(len(e.Record.Raw))
}

// Policy defines the ingestion policy interface.
type Policy interface {
	// Ingest accepts one entry. Returns an error when the entry could not
	// be persisted or buffered; the follower stops on error.
	Ingest(ctx context.Context, entry *Entry) error

	// Flush writes any buffered entries.
	Flush(ctx context.Context) error

	// Close flushes best-effort and releases the sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalRecords is the number of entries received.
	TotalRecords int64
	// RecordsPersisted is the number of entries written to the sink.
	RecordsPersisted int64
	// BufferedRecords is the number of entries awaiting a flush.
	BufferedRecords int64
	// BufferSize is the buffered size in bytes.
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes.
	Errors int64
	// LastPersisted is the cursor of the newest persisted entry.
	LastPersisted feed.Cursor
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations.
//
// Lock discipline:
//   - StrictPolicy and NoopPolicy use the locking methods
//   - BufferedPolicy uses the Locked methods only while holding its own mu
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) persisted(n int64, last feed.Cursor) {
	r.mu.Lock()
	r.persistedLocked(n, last)
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods for BufferedPolicy ---
// Caller must hold BufferedPolicy.mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) persistedLocked(n int64, last feed.Cursor) {
	r.stats.RecordsPersisted += n
	if !last.IsZero() {
		r.stats.LastPersisted = last
	}
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

// snapshotLocked returns a snapshot with the given buffer state.
func (r *statsRecorder) snapshotLocked(records int, bytes int64) Stats {
	s := r.stats
	s.BufferedRecords = int64(records)
	s.BufferSize = bytes
	return s
}

// lastCursor returns the cursor of the final entry in a batch.
func lastCursor(entries []*Entry) feed.Cursor {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].Cursor
}
