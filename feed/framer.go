package feed

import "bytes"

// lineTerminator separates records on the change feed.
const lineTerminator = '\n'

// LineFramer splits arbitrarily chunked bytes into complete lines.
//
// Chunks may split a record anywhere, including inside a multi-byte
// character. The unterminated tail of the last chunk is held back until a
// later chunk completes it or Flush is called at stream end.
//
// A LineFramer is owned by a single session and is not safe for concurrent use.
type LineFramer struct {
	buf []byte
}

// NewLineFramer creates an empty framer.
func NewLineFramer() *LineFramer {
	return &LineFramer{}
}

// Feed appends chunk to the pending fragment and returns every complete line.
// Terminators are stripped, along with a trailing carriage return. Empty lines
// are returned as empty slices; filtering them is the caller's job.
// Returned lines never alias the framer's internal buffer.
func (f *LineFramer) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(f.buf, lineTerminator)
		if i < 0 {
			break
		}
		lines = append(lines, cloneLine(f.buf[:i]))
		f.buf = f.buf[i+1:]
	}

	// Compact so the retained fragment does not pin the consumed prefix.
	if len(f.buf) == 0 {
		f.buf = nil
	} else if len(lines) > 0 {
		f.buf = append([]byte(nil), f.buf...)
	}
	return lines
}

// Flush returns the retained fragment once, if non-empty, and resets the
// framer. Called when the stream ends so the final unterminated record is
// not dropped.
func (f *LineFramer) Flush() ([]byte, bool) {
	if len(f.buf) == 0 {
		f.buf = nil
		return nil, false
	}
	line := cloneLine(f.buf)
	f.buf = nil
	return line, true
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (f *LineFramer) Pending() int {
	return len(f.buf)
}

func cloneLine(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
