package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// maxErrorLine bounds how much of a malformed line is kept in a DecodeError.
const maxErrorLine = 256

var errTrailingData = errors.New("unexpected data after JSON value")

// Record is one decoded line of the change feed.
//
// Value holds the fully decoded JSON (nil for a literal null). The remaining
// fields are conveniences extracted from the raw line; the consumer itself
// only relies on Seq.
type Record struct {
	// Raw is the line exactly as received.
	Raw json.RawMessage
	// Value is the decoded line. Numbers decode as json.Number.
	Value any
	// Seq is last_seq, or seq when last_seq is absent. Empty when neither is set.
	Seq Cursor
	// ID is the document id, if present.
	ID string
	// Deleted reports a deletion tombstone.
	Deleted bool
	// Doc is the included document body, if present.
	Doc json.RawMessage
}

// DecodeError reports a line that is not valid JSON.
// It is a per-line condition; the session discards the line and continues.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode change line %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a single line.
//
// Returns:
//   - (nil, nil) for empty or whitespace-only lines (heartbeats)
//   - (nil, *DecodeError) for malformed JSON
//   - (*Record, nil) otherwise, including for a literal null
func Decode(line []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, newDecodeError(trimmed, err)
	}
	// Reject trailing data after the first JSON value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, newDecodeError(trimmed, errTrailingData)
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)

	rec := &Record{
		Raw:   raw,
		Value: value,
	}

	if _, ok := value.(map[string]any); ok {
		fields := gjson.GetManyBytes(raw, "last_seq", "seq", "id", "deleted", "doc")
		rec.Seq = ParseCursor(fields[0])
		if rec.Seq.IsZero() {
			rec.Seq = ParseCursor(fields[1])
		}
		rec.ID = fields[2].String()
		rec.Deleted = fields[3].Bool()
		if fields[4].Exists() && fields[4].Type != gjson.Null {
			rec.Doc = json.RawMessage(fields[4].Raw)
		}
	}

	return rec, nil
}

func newDecodeError(line []byte, err error) *DecodeError {
	if len(line) > maxErrorLine {
		line = line[:maxErrorLine]
	}
	kept := make([]byte, len(line))
	copy(kept, line)
	return &DecodeError{Line: kept, Err: err}
}
