package feed

import (
	"context"
	"encoding/json"
	"io"
)

// Transport opens change streams and runs view queries against the
// document store. The couch package provides the HTTP implementation.
type Transport interface {
	// Changes opens a continuous change stream starting after since.
	// A returned error means no response was received (connect failure).
	// The caller owns the returned body and must close it. Read errors on
	// the body are mid-stream failures; io.EOF is a graceful end.
	Changes(ctx context.Context, since Cursor) (io.ReadCloser, error)

	// View runs one snapshot query and returns its rows together with the
	// sequence marker the server reported for that snapshot.
	View(ctx context.Context, spec ViewSpec) (*ViewResult, error)
}

// ViewSpec identifies one pre-fetch query.
type ViewSpec struct {
	// Name keys the views:<name> event.
	Name string
	// Path is relative to the store URL, e.g. "_design/app/_view/by_type".
	Path string
	// Query holds request parameters. The transport adds update_seq=true.
	Query map[string]any
}

// Row is one element of a view's rows array.
type Row = json.RawMessage

// ViewResult is the outcome of one view query.
type ViewResult struct {
	Rows      []Row
	UpdateSeq Cursor
}
