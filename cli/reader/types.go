// Package reader provides the read-side data access layer for the sluice CLI.
//
// Read-only commands go through this package instead of touching the
// follow runtime: it turns archive records, checkpoint files and view
// query results into flat response types that every renderer (json,
// table, yaml, tui) consumes unchanged.
package reader

import "time"

// MetricsSnapshot is the latest persisted metrics record of a feed.
type MetricsSnapshot struct {
	Ts string `json:"ts"`

	// Stream sessions
	SessionsStarted   int64 `json:"sessions_started_total"`
	ConnectFailures   int64 `json:"connect_failures_total"`
	StreamErrors      int64 `json:"stream_errors_total"`
	GracefulEnds      int64 `json:"graceful_ends_total"`
	ReconnectsPlanned int64 `json:"reconnects_planned_total"`

	// Records
	RecordsEmitted int64 `json:"records_emitted_total"`
	LinesSkipped   int64 `json:"lines_skipped_total"`
	DecodeErrors   int64 `json:"decode_errors_total"`

	// Pre-fetch
	ViewsQueried int64 `json:"views_queried_total"`
	ViewRows     int64 `json:"view_rows_total"`
	ViewFailures int64 `json:"view_failures_total"`

	// Delivery
	RecordsReceived  int64 `json:"records_received_total"`
	RecordsPersisted int64 `json:"records_persisted_total"`

	// Archive
	ArchiveWriteSuccess int64 `json:"archive_write_success_total"`
	ArchiveWriteFailure int64 `json:"archive_write_failure_total"`

	// Dimensions
	Feed           string `json:"feed"`
	Database       string `json:"database"`
	Policy         string `json:"policy,omitempty"`
	StorageBackend string `json:"storage_backend,omitempty"`
}

// CheckpointInfo describes a checkpoint file.
type CheckpointInfo struct {
	Path      string    `json:"path"`
	Feed      string    `json:"feed"`
	Database  string    `json:"database"`
	Cursor    string    `json:"cursor"`
	Records   int64     `json:"records"`
	UpdatedAt time.Time `json:"updated_at"`
	Age       string    `json:"age"`
}

// ViewSummary is one pre-fetch query result.
type ViewSummary struct {
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	UpdateSeq string `json:"update_seq"`
}

// QueryResult is the outcome of a pre-fetch run.
type QueryResult struct {
	Database string        `json:"database"`
	Cursor   string        `json:"cursor"`
	Views    []ViewSummary `json:"views"`
}
