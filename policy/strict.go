package policy

import "context"

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each entry is written immediately
//   - Backpressure: the stream blocks on sink latency
//   - Sink errors stop the follower
type StrictPolicy struct {
	sink  Sink
	stats statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// Ingest writes the entry immediately to the sink.
func (p *StrictPolicy) Ingest(ctx context.Context, entry *Entry) error {
	p.stats.incTotal()

	// Write immediately (batch of 1)
	if err := p.sink.WriteRecords(ctx, []*Entry{entry}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.persisted(1, entry.Cursor)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify StrictPolicy implements Policy.
var _ Policy = (*StrictPolicy)(nil)
