// Package lode archives change records and metrics snapshots into a Lode
// dataset, on the local filesystem or S3.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new archive sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, entries []*policy.Entry) error {
	return s.client.WriteRecords(ctx, entries)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	mu sync.Mutex

	Batches [][]*policy.Entry
	Metrics []metrics.Snapshot
	Closed  bool

	// ErrorOnWrite, when set, is returned by every write.
	ErrorOnWrite error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, entries []*policy.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrorOnWrite != nil {
		return c.ErrorOnWrite
	}
	c.Batches = append(c.Batches, entries)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrorOnWrite != nil {
		return c.ErrorOnWrite
	}
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}

var _ Client = (*StubClient)(nil)
