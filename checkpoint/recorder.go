package checkpoint

import (
	"sync"
	"time"

	"github.com/pithecene-io/sluice/feed"
)

// Recorder saves a checkpoint every N observed cursors.
type Recorder struct {
	store    Store
	every    int
	feed     string
	database string
	now      func() time.Time

	mu      sync.Mutex
	cursor  feed.Cursor
	records int64
	pending int
}

// NewRecorder creates a recorder. every <= 0 saves on every observation.
// base seeds the record count and cursor from a loaded checkpoint; it may be nil.
func NewRecorder(store Store, every int, feedName, database string, base *Checkpoint) *Recorder {
	if every <= 0 {
		every = 1
	}
	r := &Recorder{store: store, every: every, feed: feedName, database: database, now: time.Now}
	if base != nil {
		r.cursor = base.Cursor
		r.records = base.Records
	}
	return r
}

// Observe records a new cursor and saves when the interval is reached.
func (r *Recorder) Observe(c feed.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursor = c
	r.records++
	r.pending++
	if r.pending < r.every {
		return nil
	}
	return r.saveLocked()
}

// SetCursor moves the cursor without counting a record. The change is
// saved by the next Observe or Flush.
func (r *Recorder) SetCursor(c feed.Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == "" || c == r.cursor {
		return
	}
	r.cursor = c
	r.pending++
}

// Flush saves any unsaved observations.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == 0 {
		return nil
	}
	return r.saveLocked()
}

// Cursor returns the last observed cursor.
func (r *Recorder) Cursor() feed.Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Recorder) saveLocked() error {
	err := r.store.Save(&Checkpoint{
		Feed:      r.feed,
		Database:  r.database,
		Cursor:    r.cursor,
		Records:   r.records,
		UpdatedAt: r.now().UTC(),
	})
	if err != nil {
		return err
	}
	r.pending = 0
	return nil
}
