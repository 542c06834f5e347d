package reader

import (
	"encoding/json"
	"errors"
)

// ParseMetricsRecord converts an archive record (map[string]any) to a MetricsSnapshot.
// Handles int64 (direct writes) as well as float64 and json.Number (JSON round-trips).
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		SessionsStarted:   toInt64(record["sessions_started_total"]),
		ConnectFailures:   toInt64(record["connect_failures_total"]),
		StreamErrors:      toInt64(record["stream_errors_total"]),
		GracefulEnds:      toInt64(record["graceful_ends_total"]),
		ReconnectsPlanned: toInt64(record["reconnects_planned_total"]),

		RecordsEmitted: toInt64(record["records_emitted_total"]),
		LinesSkipped:   toInt64(record["lines_skipped_total"]),
		DecodeErrors:   toInt64(record["decode_errors_total"]),

		ViewsQueried: toInt64(record["views_queried_total"]),
		ViewRows:     toInt64(record["view_rows_total"]),
		ViewFailures: toInt64(record["view_failures_total"]),

		RecordsReceived:  toInt64(record["records_received_total"]),
		RecordsPersisted: toInt64(record["records_persisted_total"]),

		ArchiveWriteSuccess: toInt64(record["archive_write_success_total"]),
		ArchiveWriteFailure: toInt64(record["archive_write_failure_total"]),

		Feed:           toString(record["feed"]),
		Database:       toString(record["database"]),
		Policy:         toString(record["policy"]),
		StorageBackend: toString(record["storage_backend"]),
	}

	// The write path always sets these; a missing value means a malformed record.
	if snap.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if snap.Feed == "" {
		return nil, errors.New("metrics record missing required field: feed")
	}
	if snap.Database == "" {
		return nil, errors.New("metrics record missing required field: database")
	}

	return snap, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
