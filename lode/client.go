package lode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "sluice"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"database", "day", "record_kind"}

// Config holds archive configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Feed is the configured feed name, stored on every record.
	Feed string
	// Database is the partition key for the source database.
	Database string
}

// Validate checks that required fields are present.
func (c Config) Validate() error {
	if c.Dataset == "" {
		return errors.New("archive dataset is required")
	}
	if c.Database == "" {
		return errors.New("archive database is required")
	}
	return nil
}

// Client abstracts the archive storage client.
type Client interface {
	// WriteRecords writes a batch of change entries.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, entries []*policy.Entry) error

	// WriteMetrics writes one metrics snapshot record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, at time.Time) error

	// Close releases client resources.
	Close() error
}

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys database/day/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	// mu serializes writes so batches land as ordered snapshots.
	mu  sync.Mutex
	now func() time.Time
}

// NewLodeClient creates a Lode client with filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg), nil
}

func newClient(ds lode.Dataset, cfg Config) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, now: time.Now}
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteRecords writes a batch of change entries as one snapshot.
// An empty batch is a no-op.
func (c *LodeClient) WriteRecords(ctx context.Context, entries []*policy.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	records := make([]any, 0, len(entries))
	for _, e := range entries {
		records = append(records, toChangeRecordMap(e, c.config, now))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindChange))
	}
	return nil
}

// WriteMetrics writes a metrics snapshot to the record_kind=metrics partition.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := toMetricsRecordMap(snap, c.config, at)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindMetrics))
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

func (c *LodeClient) partitionPath(kind string) string {
	return fmt.Sprintf("%s/database=%s/record_kind=%s", c.config.Dataset, c.config.Database, kind)
}

var _ Client = (*LodeClient)(nil)
