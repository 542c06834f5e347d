package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestMetrics finds the most recent metrics record.
// Filters by database and feed if non-empty.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, database, feedName string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotMatchesFilter(snap, "record_kind", RecordKindMetrics) {
			continue
		}
		if !snapshotMatchesFilter(snap, "database", database) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Record fields are authoritative; the manifest check is a pre-filter.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if database != "" && toString(record["database"]) != database {
				continue
			}
			if feedName != "" && toString(record["feed"]) != feedName {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoMetricsFound
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
