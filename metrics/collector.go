// Package metrics provides per-consumer metrics collection.
//
// The Collector accumulates counters for the lifetime of one consumer. It is
// a leaf package with no internal dependencies. Policy metrics are absorbed
// from policy.Stats at shutdown rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all consumer metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream sessions
	SessionsStarted   int64
	ConnectFailures   int64
	StreamErrors      int64
	GracefulEnds      int64
	ReconnectsPlanned int64

	// Records
	RecordsEmitted int64
	LinesSkipped   int64
	DecodeErrors   int64

	// Pre-fetch
	ViewsQueried int64
	ViewRows     int64
	ViewFailures int64

	// Delivery (absorbed from policy.Stats at shutdown)
	RecordsReceived  int64
	RecordsPersisted int64

	// Archive
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64

	// Dimensions (informational, set at construction)
	Feed           string
	Database       string
	Policy         string
	StorageBackend string
}

// Collector accumulates metrics for one consumer.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe, so callers
// that run without metrics can pass a nil *Collector.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	connectFailures   int64
	streamErrors      int64
	gracefulEnds      int64
	reconnectsPlanned int64

	recordsEmitted int64
	linesSkipped   int64
	decodeErrors   int64

	viewsQueried int64
	viewRows     int64
	viewFailures int64

	recordsReceived  int64
	recordsPersisted int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	feed           string
	database       string
	policy         string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
// policy and storageBackend may be empty when no archive is configured.
func NewCollector(feed, database, policy, storageBackend string) *Collector {
	return &Collector{
		feed:           feed,
		database:       database,
		policy:         policy,
		storageBackend: storageBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Stream sessions ---

// IncSessionStarted records a connection attempt.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncConnectFailure records an attempt that never received a response.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.add(&c.connectFailures, 1)
}

// IncStreamError records a transport failure after the response began.
func (c *Collector) IncStreamError() {
	if c == nil {
		return
	}
	c.add(&c.streamErrors, 1)
}

// IncGracefulEnd records a server-side close without error.
func (c *Collector) IncGracefulEnd() {
	if c == nil {
		return
	}
	c.add(&c.gracefulEnds, 1)
}

// IncReconnectPlanned records a reconnect scheduled after a failure.
func (c *Collector) IncReconnectPlanned() {
	if c == nil {
		return
	}
	c.add(&c.reconnectsPlanned, 1)
}

// --- Records ---

// IncRecordsEmitted records one emitted change event.
func (c *Collector) IncRecordsEmitted() {
	if c == nil {
		return
	}
	c.add(&c.recordsEmitted, 1)
}

// IncLinesSkipped records an empty (heartbeat) line.
func (c *Collector) IncLinesSkipped() {
	if c == nil {
		return
	}
	c.add(&c.linesSkipped, 1)
}

// IncDecodeErrors records a discarded malformed line.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// --- Pre-fetch ---

// IncViewsQueried records a completed view query.
func (c *Collector) IncViewsQueried() {
	if c == nil {
		return
	}
	c.add(&c.viewsQueried, 1)
}

// AddViewRows records rows returned by a view query.
func (c *Collector) AddViewRows(n int) {
	if c == nil {
		return
	}
	c.add(&c.viewRows, int64(n))
}

// IncViewFailure records a failed view query.
func (c *Collector) IncViewFailure() {
	if c == nil {
		return
	}
	c.add(&c.viewFailures, 1)
}

// --- Archive ---
// Archive counters are per-call, not per-record. A single WriteRecords call
// with N records counts as 1 success.

// IncArchiveWriteSuccess records a successful archive write (per-call).
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records a failed archive write (per-call).
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// AbsorbPolicyStats sets delivery counters from a policy snapshot.
// Takes plain values to keep metrics free of a policy import.
func (c *Collector) AbsorbPolicyStats(received, persisted int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsReceived = received
	c.recordsPersisted = persisted
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
// A nil collector yields the zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsStarted:     c.sessionsStarted,
		ConnectFailures:     c.connectFailures,
		StreamErrors:        c.streamErrors,
		GracefulEnds:        c.gracefulEnds,
		ReconnectsPlanned:   c.reconnectsPlanned,
		RecordsEmitted:      c.recordsEmitted,
		LinesSkipped:        c.linesSkipped,
		DecodeErrors:        c.decodeErrors,
		ViewsQueried:        c.viewsQueried,
		ViewRows:            c.viewRows,
		ViewFailures:        c.viewFailures,
		RecordsReceived:     c.recordsReceived,
		RecordsPersisted:    c.recordsPersisted,
		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		Feed:                c.feed,
		Database:            c.database,
		Policy:              c.policy,
		StorageBackend:      c.storageBackend,
	}
}
