package feed

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/log"
)

// readBufferSize is the size of a single read from the change stream.
const readBufferSize = 32 << 10

// SessionState is the lifecycle state of the stream session.
type SessionState int

const (
	// StateIdle means Listen has not been called.
	StateIdle SessionState = iota
	// StateConnecting means a request is in flight or a reconnect is pending.
	StateConnecting
	// StateStreaming means a response was received and is being read.
	StateStreaming
	// StateEnded means the server closed the stream cleanly.
	StateEnded
	// StateTerminated means a failure occurred with retry disabled.
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// session owns one streaming connection. It is created for every connection
// attempt and discarded when the attempt ends.
type session struct {
	id       string
	consumer *Consumer
	framer   *LineFramer
	cursor   Cursor
	logger   *log.Logger
}

func newSession(c *Consumer, cursor Cursor) *session {
	id := uuid.NewString()
	return &session{
		id:       id,
		consumer: c,
		framer:   NewLineFramer(),
		cursor:   cursor,
		logger:   c.logger.With(map[string]any{"session_id": id}),
	}
}

// run opens the stream and reads it to completion.
//
// Returns nil on graceful end (after the final pending line is emitted),
// ctx.Err() on cancellation, and *SessionError on transport failure. A
// partial line pending at a transport failure is discarded; the cursor
// has not moved past it, so the next session receives it again.
func (s *session) run(ctx context.Context) error {
	c := s.consumer
	s.logger.Debug("opening change stream", map[string]any{"since": s.cursor.String()})

	body, err := c.transport.Changes(ctx, s.cursor)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SessionError{Kind: SessionConnect, Cursor: s.cursor, Err: err}
	}
	defer iox.DiscardClose(body)

	// Unblock the pending Read when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	c.markConnected()

	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range s.framer.Feed(buf[:n]) {
				s.handleLine(line)
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			if line, ok := s.framer.Flush(); ok {
				s.handleLine(line)
			}
			return nil
		}
		if pending := s.framer.Pending(); pending > 0 {
			s.logger.Debug("discarding partial line", map[string]any{"bytes": pending})
		}
		return &SessionError{Kind: SessionStream, Cursor: s.cursor, Err: err}
	}
}

// handleLine decodes one line, advances the cursor and emits the record.
func (s *session) handleLine(line []byte) {
	c := s.consumer
	rec, err := Decode(line)
	if err != nil {
		c.collector.IncDecodeErrors()
		s.logger.Debug("discarding malformed line", map[string]any{"error": err.Error()})
		return
	}
	if rec == nil {
		c.collector.IncLinesSkipped()
		return
	}

	s.cursor = s.cursor.Advance(rec)
	c.setCursor(s.cursor)
	c.collector.IncRecordsEmitted()
	c.events.emit(Event{Kind: EventChange, Record: rec, Cursor: s.cursor})
}
