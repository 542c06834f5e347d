package feed

import "github.com/tidwall/gjson"

// Cursor is an opaque position in the change log.
//
// Servers hand out integers ("42") or opaque tokens ("42-g1AAAAB...").
// The consumer never interprets a cursor; it only carries the latest one
// forward into the next connection attempt.
type Cursor string

// StartCursor is the position used when the caller supplies none.
const StartCursor Cursor = "0"

// String returns the cursor as sent on the wire.
func (c Cursor) String() string {
	return string(c)
}

// IsZero reports whether the cursor is unset.
func (c Cursor) IsZero() bool {
	return c == ""
}

// OrStart returns c, or StartCursor when c is unset.
func (c Cursor) OrStart() Cursor {
	if c.IsZero() {
		return StartCursor
	}
	return c
}

// Advance returns the record's sequence when it carries one, otherwise c.
// A nil record (skipped or undecodable line) never moves the cursor.
func (c Cursor) Advance(rec *Record) Cursor {
	if rec == nil || rec.Seq.IsZero() {
		return c
	}
	return rec.Seq
}

// ParseCursor converts a JSON value into a cursor.
//   - numbers keep their JSON text (5 -> "5")
//   - strings keep their string value
//   - arrays and objects keep their raw JSON text
//   - null, missing and empty strings yield the zero cursor
func ParseCursor(v gjson.Result) Cursor {
	if !v.Exists() {
		return ""
	}
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return Cursor(v.String())
	default:
		return Cursor(v.Raw)
	}
}
