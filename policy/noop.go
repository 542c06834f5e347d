package policy

import "context"

// NoopPolicy accepts entries without persisting them.
// Used when no archive is configured: entries count as persisted so the
// checkpoint can follow the stream.
type NoopPolicy struct {
	stats statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// Ingest accepts the entry but does not persist it.
func (p *NoopPolicy) Ingest(_ context.Context, entry *Entry) error {
	p.stats.incTotal()
	p.stats.persisted(1, entry.Cursor)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify NoopPolicy implements Policy.
var _ Policy = (*NoopPolicy)(nil)
