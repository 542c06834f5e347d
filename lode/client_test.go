package lode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sluice/feed"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// sharedFactory returns a StoreFactory that always returns the given store,
// so write and read datasets share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// toInt64 converts a decoded numeric field for assertions.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// failingStore is a lode.Store whose Put returns a configured error.
type failingStore struct {
	putErr   error
	putCalls int
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error {
	s.putCalls++
	return s.putErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func testConfig() Config {
	return Config{Dataset: "sluice", Feed: "orders", Database: "shop"}
}

func testEntry(t *testing.T, line string, at time.Time) *policy.Entry {
	t.Helper()
	rec, err := feed.Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode(%q): %v", line, err)
	}
	return &policy.Entry{Cursor: rec.Seq, Record: rec, ReceivedAt: at}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", testConfig(), false},
		{"missing dataset", Config{Database: "shop"}, true},
		{"missing database", Config{Dataset: "sluice"}, true},
		{"feed optional", Config{Dataset: "sluice", Database: "shop"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLodeClient_WriteRecords_RoundTrip(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)

	client, err := NewLodeClientWithFactory(testConfig(), factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*policy.Entry{
		testEntry(t, `{"seq":"1-a","id":"order-1","changes":[{"rev":"1-x"}],"doc":{"total":5}}`, at),
		testEntry(t, `{"seq":"2-b","id":"order-2","deleted":true}`, at.Add(time.Second)),
	}
	if err := client.WriteRecords(t.Context(), entries); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	ds, err := NewReadDataset("sluice", factory)
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	snaps, err := ds.Snapshots(t.Context())
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	snap := snaps[0]
	for _, key := range []string{"database=shop", "day=2026-03-01", "record_kind=change"} {
		k, v, _ := strings.Cut(key, "=")
		if !snapshotMatchesFilter(snap, k, v) {
			t.Errorf("snapshot files missing partition %s", key)
		}
	}

	data, err := ds.Read(t.Context(), snap.ID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("Read returned %d records, want 2", len(data))
	}

	first, ok := data[0].(map[string]any)
	if !ok {
		t.Fatalf("record type = %T, want map[string]any", data[0])
	}
	if first["record_kind"] != RecordKindChange {
		t.Errorf("record_kind = %v, want %q", first["record_kind"], RecordKindChange)
	}
	if first["seq"] != "1-a" || first["id"] != "order-1" {
		t.Errorf("first record seq/id = %v/%v", first["seq"], first["id"])
	}
	if first["feed"] != "orders" {
		t.Errorf("feed = %v, want orders", first["feed"])
	}
	if first["received_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("received_at = %v", first["received_at"])
	}
	change, ok := first["change"].(map[string]any)
	if !ok {
		t.Fatalf("change = %T, want object", first["change"])
	}
	doc, _ := change["doc"].(map[string]any)
	if toInt64(doc["total"]) != 5 {
		t.Errorf("change.doc.total = %v, want 5", doc["total"])
	}

	second, _ := data[1].(map[string]any)
	if second["seq"] != "2-b" || second["deleted"] != true {
		t.Errorf("second record = %v", second)
	}
}

func TestLodeClient_WriteRecords_EmptyBatch(t *testing.T) {
	store := &failingStore{putErr: errors.New("should not be called")}
	client, err := NewLodeClientWithFactory(testConfig(), sharedFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	if err := client.WriteRecords(t.Context(), nil); err != nil {
		t.Errorf("WriteRecords(nil) = %v, want nil", err)
	}
	if store.putCalls != 0 {
		t.Errorf("put calls = %d, want 0", store.putCalls)
	}
}

func TestLodeClient_WriteFailures(t *testing.T) {
	tests := []struct {
		name   string
		putErr error
		want   error
	}{
		{"disk full", errors.New("write /data/sluice/part.jsonl: no space left on device"), ErrDiskFull},
		{"permission", errors.New("open /data/sluice: permission denied"), ErrPermissionDenied},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"auth", errors.New("InvalidAccessKeyId: the access key id you provided is invalid"), ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{putErr: tt.putErr}
			client, err := NewLodeClientWithFactory(testConfig(), sharedFactory(store))
			if err != nil {
				t.Fatalf("NewLodeClientWithFactory failed: %v", err)
			}

			entry := testEntry(t, `{"seq":"1","id":"a"}`, time.Now())
			err = client.WriteRecords(t.Context(), []*policy.Entry{entry})
			if !errors.Is(err, tt.want) {
				t.Fatalf("WriteRecords error = %v, want kind %v", err, tt.want)
			}

			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("expected *StorageError, got %T", err)
			}
			if storageErr.Op != "write" {
				t.Errorf("Op = %q, want write", storageErr.Op)
			}
			if storageErr.Path != "sluice/database=shop/record_kind=change" {
				t.Errorf("Path = %q", storageErr.Path)
			}
			if !errors.Is(err, tt.putErr) {
				t.Error("original error lost from chain")
			}
			if store.putCalls == 0 {
				t.Error("expected a put attempt")
			}
		})
	}
}

func TestNewLodeClient_InvalidConfig(t *testing.T) {
	if _, err := NewLodeClientWithFactory(Config{Dataset: "sluice"}, lode.NewMemoryFactory()); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestLodeClient_WriteMetrics(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig(), lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	snap := metrics.Snapshot{SessionsStarted: 2, RecordsEmitted: 10, Policy: "strict"}
	if err := client.WriteMetrics(t.Context(), snap, time.Now()); err != nil {
		t.Fatalf("WriteMetrics failed: %v", err)
	}
}

func TestToChangeRecordMap(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("record fields", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 23, 59, 0, 0, time.FixedZone("X", -2*3600))
		e := testEntry(t, `{"seq":"7-z","id":"d","deleted":true}`, at)
		m := toChangeRecordMap(e, testConfig(), now)

		if m["day"] != "2026-03-02" {
			t.Errorf("day = %v, want UTC day 2026-03-02", m["day"])
		}
		if m["seq"] != "7-z" || m["id"] != "d" || m["deleted"] != true {
			t.Errorf("unexpected fields: %v", m)
		}
		raw, ok := m["change"].(json.RawMessage)
		if !ok || string(raw) != `{"seq":"7-z","id":"d","deleted":true}` {
			t.Errorf("change = %v", m["change"])
		}
	})

	t.Run("cursor fallback and zero time", func(t *testing.T) {
		e := testEntry(t, `{"id":"no-seq"}`, time.Time{})
		e.Cursor = "42"
		m := toChangeRecordMap(e, testConfig(), now)

		if m["seq"] != "42" {
			t.Errorf("seq = %v, want cursor 42", m["seq"])
		}
		if m["received_at"] != "2026-03-02T00:00:00Z" {
			t.Errorf("received_at = %v, want now", m["received_at"])
		}
		if _, ok := m["deleted"]; ok {
			t.Error("deleted should be omitted when false")
		}
	})
}

func TestToMetricsRecordMap(t *testing.T) {
	snap := metrics.Snapshot{
		SessionsStarted:     3,
		ReconnectsPlanned:   2,
		RecordsEmitted:      42,
		ViewRows:            7,
		ArchiveWriteSuccess: 5,
		Policy:              "buffered",
	}
	at := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	m := toMetricsRecordMap(snap, testConfig(), at)

	if m["record_kind"] != RecordKindMetrics {
		t.Errorf("record_kind = %v", m["record_kind"])
	}
	if m["ts"] != "2026-03-01T15:30:00Z" {
		t.Errorf("ts = %v", m["ts"])
	}
	if m["records_emitted_total"] != int64(42) || m["reconnects_planned_total"] != int64(2) {
		t.Errorf("counters not carried: %v", m)
	}
	if m["policy"] != "buffered" {
		t.Errorf("policy = %v", m["policy"])
	}
	if _, ok := m["storage_backend"]; ok {
		t.Error("storage_backend should be omitted when empty")
	}
}

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{"empty bucket", S3Config{}, true},
		{"bucket only", S3Config{Bucket: "b"}, false},
		{"https endpoint", S3Config{Bucket: "b", Endpoint: "https://r2.example.com"}, false},
		{"http endpoint", S3Config{Bucket: "b", Endpoint: "http://localhost:9000"}, false},
		{"bare host endpoint", S3Config{Bucket: "b", Endpoint: "localhost:9000"}, true},
		{"ftp endpoint", S3Config{Bucket: "b", Endpoint: "ftp://example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path       string
		wantBucket string
		wantPrefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b/c", "bucket", "a/b/c"},
		{"s3://bucket/archive/", "bucket", "archive"},
		{"s3://bucket", "bucket", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.wantBucket || prefix != tt.wantPrefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)",
				tt.path, bucket, prefix, tt.wantBucket, tt.wantPrefix)
		}
	}
}
