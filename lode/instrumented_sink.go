package lode

import (
	"context"

	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// InstrumentedSink wraps a policy.Sink and counts archive writes.
// Each WriteRecords call increments archive_write_success or
// archive_write_failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, entries []*policy.Entry) error {
	err := s.inner.WriteRecords(ctx, entries)
	if err != nil {
		s.collector.IncArchiveWriteFailure()
	} else {
		s.collector.IncArchiveWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
