package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/sluice/log"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxRecords triggers a flush once N entries are buffered.
	// Zero disables the count trigger.
	MaxRecords int

	// MaxBytes triggers a flush once the buffered raw size reaches N bytes.
	// Zero disables the size trigger.
	MaxBytes int64

	// FlushInterval flushes the buffer periodically.
	// Zero disables the interval trigger.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxRecords:    1000,
		MaxBytes:      10 * 1024 * 1024, // 10 MB
		FlushInterval: 5 * time.Second,
	}
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a record-count flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerBytes indicates a buffer-size flush.
	FlushTriggerBytes FlushTrigger = "bytes"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates an explicit Flush or Close.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrInvalidConfig is returned when BufferedConfig has no trigger.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxRecords, MaxBytes or FlushInterval must be set")

// BufferedPolicy batches entries and writes them when a trigger fires.
//
//   - No drops: every entry is eventually written or reported as an error
//   - Flush on count, size, interval, explicit Flush and Close
//   - On write failure the batch is restored ahead of newer entries and
//     retried on the next trigger; count and size triggers return the error
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes writes so batches reach the sink in order
//   - writes happen outside mu so ingestion continues during a flush
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex
	buffer      []*Entry
	bufferBytes int64
	stats       statsRecorder
	triggers    map[FlushTrigger]int64
	stopped     bool

	flushMu sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config has no trigger.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxRecords <= 0 && config.MaxBytes <= 0 && config.FlushInterval <= 0 {
		return nil, ErrInvalidConfig
	}

	p := &BufferedPolicy{
		sink:     sink,
		config:   config,
		logger:   config.Logger,
		buffer:   make([]*Entry, 0, max(config.MaxRecords, 64)),
		triggers: make(map[FlushTrigger]int64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go p.intervalLoop()
	} else {
		close(p.doneCh)
	}

	return p, nil
}

// Ingest buffers the entry and flushes if a count or size trigger fires.
func (p *BufferedPolicy) Ingest(ctx context.Context, entry *Entry) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, entry)
	p.bufferBytes += entry.Size()

	var trigger FlushTrigger
	switch {
	case p.config.MaxRecords > 0 && len(p.buffer) >= p.config.MaxRecords:
		trigger = FlushTriggerCount
	case p.config.MaxBytes > 0 && p.bufferBytes >= p.config.MaxBytes:
		trigger = FlushTriggerBytes
	}
	p.mu.Unlock()

	if trigger == "" {
		return nil
	}
	return p.flush(ctx, trigger)
}

// Flush writes all buffered entries.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerTermination)
}

// flush swaps the buffer out under mu, writes it outside mu, and restores
// it in front of any newer entries on failure.
func (p *BufferedPolicy) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	p.triggers[trigger]++
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*Entry, 0, max(p.config.MaxRecords, 64))
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.persistedLocked(int64(len(batch)), lastCursor(batch))
	p.mu.Unlock()
	p.logFlush(trigger, len(batch))
	return nil
}

// Close stops the interval goroutine, flushes best-effort and closes the sink.
func (p *BufferedPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()
	<-p.doneCh

	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns policy statistics.
// The buffer mutex is held while taking the snapshot so counters and
// buffer state are consistent.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(len(p.buffer), p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *BufferedPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[FlushTrigger]int64, len(p.triggers))
	for k, v := range p.triggers {
		out[k] = v
	}
	return out
}

// intervalLoop triggers flushes on the configured interval until Close.
func (p *BufferedPolicy) intervalLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// Failures keep the batch buffered for the next trigger.
				_ = p.flush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, e := range p.buffer {
		total += e.Size()
	}
	p.bufferBytes = total
}

// --- Logging helpers ---

func (p *BufferedPolicy) logFlush(trigger FlushTrigger, records int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("buffered flush", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"policy":  "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(trigger FlushTrigger, records int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffered flush failed", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

// Verify BufferedPolicy implements Policy.
var _ Policy = (*BufferedPolicy)(nil)
