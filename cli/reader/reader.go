package reader

import (
	"time"

	"github.com/pithecene-io/sluice/checkpoint"
	"github.com/pithecene-io/sluice/feed"
)

// ReadCheckpoint loads the checkpoint at path. now is used to compute Age.
// A missing file returns checkpoint.ErrNotFound.
func ReadCheckpoint(path string, now time.Time) (*CheckpointInfo, error) {
	store := checkpoint.NewFileStore(path)
	cp, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &CheckpointInfo{
		Path:      store.Path(),
		Feed:      cp.Feed,
		Database:  cp.Database,
		Cursor:    cp.Cursor.String(),
		Records:   cp.Records,
		UpdatedAt: cp.UpdatedAt,
		Age:       now.Sub(cp.UpdatedAt).Truncate(time.Second).String(),
	}, nil
}

// QueryCollector accumulates per-view results from consumer events.
// Register Observe for every configured view before running the query.
type QueryCollector struct {
	database string
	views    map[string]ViewSummary
}

// NewQueryCollector creates a collector for the given database.
func NewQueryCollector(database string) *QueryCollector {
	return &QueryCollector{database: database, views: make(map[string]ViewSummary)}
}

// Observe records a views:<name> event.
func (q *QueryCollector) Observe(ev feed.Event) {
	q.views[ev.View] = ViewSummary{
		Name:      ev.View,
		Rows:      len(ev.Rows),
		UpdateSeq: ev.Cursor.String(),
	}
}

// Result returns the collected views in the given order and the resolved cursor.
// Views that never reported are omitted.
func (q *QueryCollector) Result(order []string, cursor feed.Cursor) *QueryResult {
	res := &QueryResult{Database: q.database, Cursor: cursor.String(), Views: []ViewSummary{}}
	for _, name := range order {
		if v, ok := q.views[name]; ok {
			res.Views = append(res.Views, v)
		}
	}
	return res
}
