package lode

import (
	"encoding/json"
	"time"

	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// RecordKind discriminator values. Each kind lands in its own
// record_kind=<kind> partition.
const (
	RecordKindChange  = "change"
	RecordKindMetrics = "metrics"
)

// ChangeRecord is the storage format for one change line.
// Records are written as maps; this type documents the field set.
type ChangeRecord struct {
	RecordKind string `json:"record_kind"`

	Seq        string          `json:"seq"`
	ID         string          `json:"id,omitempty"`
	Deleted    bool            `json:"deleted,omitempty"`
	Change     json.RawMessage `json:"change"`
	ReceivedAt string          `json:"received_at"`

	// Partition keys
	Feed     string `json:"feed"`
	Database string `json:"database"`
	Day      string `json:"day"`
}

// MetricsRecord is the storage format for a metrics snapshot.
type MetricsRecord struct {
	RecordKind string `json:"record_kind"`
	Ts         string `json:"ts"`

	SessionsStarted     int64 `json:"sessions_started_total"`
	ConnectFailures     int64 `json:"connect_failures_total"`
	StreamErrors        int64 `json:"stream_errors_total"`
	GracefulEnds        int64 `json:"graceful_ends_total"`
	ReconnectsPlanned   int64 `json:"reconnects_planned_total"`
	RecordsEmitted      int64 `json:"records_emitted_total"`
	LinesSkipped        int64 `json:"lines_skipped_total"`
	DecodeErrors        int64 `json:"decode_errors_total"`
	ViewsQueried        int64 `json:"views_queried_total"`
	ViewRows            int64 `json:"view_rows_total"`
	ViewFailures        int64 `json:"view_failures_total"`
	RecordsReceived     int64 `json:"records_received_total"`
	RecordsPersisted    int64 `json:"records_persisted_total"`
	ArchiveWriteSuccess int64 `json:"archive_write_success_total"`
	ArchiveWriteFailure int64 `json:"archive_write_failure_total"`

	Policy         string `json:"policy,omitempty"`
	StorageBackend string `json:"storage_backend,omitempty"`

	Feed     string `json:"feed"`
	Database string `json:"database"`
	Day      string `json:"day"`
}

// DeriveDay computes the partition day. Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// toChangeRecordMap converts an entry to the map written to the dataset.
// A zero ReceivedAt falls back to now.
func toChangeRecordMap(e *policy.Entry, cfg Config, now time.Time) map[string]any {
	at := e.ReceivedAt
	if at.IsZero() {
		at = now
	}
	m := map[string]any{
		"record_kind": RecordKindChange,
		"seq":         string(e.Cursor),
		"received_at": at.UTC().Format(time.RFC3339Nano),
		"feed":        cfg.Feed,
		"database":    cfg.Database,
		"day":         DeriveDay(at),
	}
	if rec := e.Record; rec != nil {
		if rec.Seq != "" {
			m["seq"] = string(rec.Seq)
		}
		if rec.ID != "" {
			m["id"] = rec.ID
		}
		if rec.Deleted {
			m["deleted"] = true
		}
		m["change"] = json.RawMessage(rec.Raw)
	}
	return m
}

// toMetricsRecordMap converts a collector snapshot to a metrics record map.
func toMetricsRecordMap(s metrics.Snapshot, cfg Config, at time.Time) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindMetrics,
		"ts":          at.UTC().Format(time.RFC3339Nano),

		"sessions_started_total":      s.SessionsStarted,
		"connect_failures_total":      s.ConnectFailures,
		"stream_errors_total":         s.StreamErrors,
		"graceful_ends_total":         s.GracefulEnds,
		"reconnects_planned_total":    s.ReconnectsPlanned,
		"records_emitted_total":       s.RecordsEmitted,
		"lines_skipped_total":         s.LinesSkipped,
		"decode_errors_total":         s.DecodeErrors,
		"views_queried_total":         s.ViewsQueried,
		"view_rows_total":             s.ViewRows,
		"view_failures_total":         s.ViewFailures,
		"records_received_total":      s.RecordsReceived,
		"records_persisted_total":     s.RecordsPersisted,
		"archive_write_success_total": s.ArchiveWriteSuccess,
		"archive_write_failure_total": s.ArchiveWriteFailure,

		"feed":     cfg.Feed,
		"database": cfg.Database,
		"day":      DeriveDay(at),
	}
	if s.Policy != "" {
		m["policy"] = s.Policy
	}
	if s.StorageBackend != "" {
		m["storage_backend"] = s.StorageBackend
	}
	return m
}
