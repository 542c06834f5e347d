package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/checkpoint"
	"github.com/pithecene-io/sluice/feed"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
	"github.com/pithecene-io/sluice/types"
)

// metricsWriteTimeout bounds the final metrics snapshot write.
const metricsWriteTimeout = 10 * time.Second

// FollowConfig configures a follow session. Only Consumer is required.
type FollowConfig struct {
	// Meta identifies the feed in logs, events and archive records.
	Meta types.FeedMeta
	// Consumer is the configured feed consumer.
	Consumer *feed.Consumer
	// Prefetch runs the configured views before listening.
	Prefetch bool
	// Start overrides the consumer's starting cursor for Listen.
	// Ignored when Prefetch is set.
	Start *feed.Cursor
	// FailFast disables retry when the first connection attempt fails.
	FailFast bool

	// Policy persists records. Nil disables archiving.
	Policy policy.Policy
	// PolicyName labels the policy in reports.
	PolicyName string
	// Adapter publishes change events downstream. Failures are logged, not fatal.
	Adapter adapter.Adapter
	// Output receives one JSON ChangeEvent per line. Nil disables output.
	Output io.Writer
	// Recorder saves checkpoints. Nil disables checkpoints.
	Recorder *checkpoint.Recorder
	// Archive receives the final metrics snapshot. Nil skips it.
	Archive lode.Client

	// Collector records metrics. Nil-safe.
	Collector *metrics.Collector
	// Logger defaults to log.Nop().
	Logger *log.Logger
}

// FollowResult summarizes a finished session.
type FollowResult struct {
	Outcome         *Outcome
	Duration        time.Duration
	Cursor          feed.Cursor
	Records         int64
	AdapterFailures int64
	PolicyStats     policy.Stats
	Metrics         metrics.Snapshot
}

// Follower runs one follow session.
type Follower struct {
	config *FollowConfig
	logger *log.Logger
	now    func() time.Time

	records         atomic.Int64
	adapterFailures atomic.Int64

	mu      sync.Mutex
	sinkErr error
	out     *json.Encoder
}

// NewFollower creates a follower.
func NewFollower(cfg *FollowConfig) (*Follower, error) {
	if cfg == nil || cfg.Consumer == nil {
		return nil, errors.New("follow requires a consumer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	f := &Follower{config: cfg, logger: logger, now: time.Now}
	if cfg.Output != nil {
		f.out = json.NewEncoder(cfg.Output)
	}
	return f, nil
}

// Execute runs until ctx is cancelled, the consumer terminates, or a record
// cannot be persisted. It always flushes the policy and checkpoint before
// returning.
//
// Execution flow:
//  1. Register change, view and reconnect handlers
//  2. Pre-fetch (optional) and listen
//  3. Close the policy (final flush)
//  4. Save the final checkpoint and metrics snapshot
func (f *Follower) Execute(ctx context.Context) *FollowResult {
	start := f.now()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	f.register(ctx, cancel)

	c := f.config.Consumer
	f.logger.Info("follow started", map[string]any{
		"prefetch": f.config.Prefetch,
		"cursor":   c.Cursor().String(),
	})

	var listenErr error
	if f.config.Prefetch {
		listenErr = c.QueryAndListen(ctx, f.onConnected)
	} else {
		listenErr = c.Listen(ctx, f.config.Start, f.onConnected)
	}

	sinkErr := f.finish()
	outcome := DetermineOutcome(listenErr, sinkErr)

	result := &FollowResult{
		Outcome:         outcome,
		Duration:        f.now().Sub(start),
		Cursor:          c.Cursor(),
		Records:         f.records.Load(),
		AdapterFailures: f.adapterFailures.Load(),
	}
	if p := f.config.Policy; p != nil {
		result.PolicyStats = p.Stats()
		f.config.Collector.AbsorbPolicyStats(result.PolicyStats.TotalRecords, result.PolicyStats.RecordsPersisted)
	}
	result.Metrics = f.config.Collector.Snapshot()
	f.writeMetrics(result.Metrics)

	f.logger.Info("follow finished", map[string]any{
		"outcome":  string(outcome.Status),
		"message":  outcome.Message,
		"cursor":   result.Cursor.String(),
		"records":  result.Records,
		"duration": result.Duration.String(),
	})
	return result
}

func (f *Follower) register(ctx context.Context, cancel context.CancelCauseFunc) {
	c := f.config.Consumer

	c.On(feed.EventChange, func(ev feed.Event) {
		f.handleChange(ctx, cancel, ev)
	})
	c.On(feed.EventChangesError, func(ev feed.Event) {
		f.logger.Warn("change stream failed", map[string]any{"error": ev.Err.Error()})
	})
	c.On(feed.EventReconnect, func(ev feed.Event) {
		f.logger.Info("reconnect scheduled", map[string]any{
			"delay":   ev.Delay.String(),
			"attempt": ev.Attempt,
			"cursor":  ev.Cursor.String(),
		})
	})
	c.On(feed.EventViews, func(ev feed.Event) {
		f.logger.Info("pre-fetch complete", map[string]any{"cursor": ev.Cursor.String()})
	})
	c.On(feed.EventViewsError, func(ev feed.Event) {
		f.logger.Error("pre-fetch failed", map[string]any{"error": ev.Err.Error()})
	})
}

// handleChange runs on the consumer goroutine; blocking here applies
// backpressure to the stream.
func (f *Follower) handleChange(ctx context.Context, cancel context.CancelCauseFunc, ev feed.Event) {
	if f.failed() {
		return
	}
	at := f.now()

	if p := f.config.Policy; p != nil {
		entry := &policy.Entry{Cursor: ev.Cursor, Record: ev.Record, ReceivedAt: at}
		if err := p.Ingest(ctx, entry); err != nil {
			if ctx.Err() != nil {
				// Shutting down; the record is redelivered on the next run.
				return
			}
			f.fail(err)
			cancel(err)
			return
		}
	}
	f.records.Add(1)

	event := adapter.NewChangeEvent(f.config.Meta, ev.Record, ev.Cursor, at)
	if f.out != nil {
		if err := f.out.Encode(event); err != nil {
			f.logger.Warn("stdout write failed", map[string]any{"error": err.Error()})
		}
	}
	if a := f.config.Adapter; a != nil {
		if err := a.Publish(ctx, event); err != nil && ctx.Err() == nil {
			f.adapterFailures.Add(1)
			f.logger.Warn("adapter publish failed", map[string]any{
				"seq":   event.Seq,
				"error": err.Error(),
			})
		}
	}

	f.observe(ev.Cursor)
}

// observe advances the checkpoint. With a policy, only the persisted
// cursor is checkpointed so a restart never skips buffered records.
func (f *Follower) observe(cursor feed.Cursor) {
	r := f.config.Recorder
	if r == nil {
		return
	}
	if p := f.config.Policy; p != nil {
		cursor = p.Stats().LastPersisted
		if cursor.IsZero() {
			return
		}
	}
	if err := r.Observe(cursor); err != nil {
		f.logger.Warn("checkpoint save failed", map[string]any{"error": err.Error()})
	}
}

func (f *Follower) onConnected(err error) {
	if err == nil {
		f.logger.Info("change stream connected", nil)
		return
	}
	f.logger.Warn("initial connection failed", map[string]any{"error": err.Error()})
	if f.config.FailFast {
		f.config.Consumer.DisableRetry()
	}
}

// finish closes the policy and saves the last checkpoint.
// Returns the sink error, if any.
func (f *Follower) finish() error {
	if p := f.config.Policy; p != nil {
		if err := p.Close(); err != nil {
			f.logger.Error("policy close failed", map[string]any{"error": err.Error()})
			f.fail(err)
		}
	}

	if r := f.config.Recorder; r != nil {
		if p := f.config.Policy; p != nil {
			r.SetCursor(p.Stats().LastPersisted)
		}
		if err := r.Flush(); err != nil {
			f.logger.Warn("checkpoint save failed", map[string]any{"error": err.Error()})
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinkErr
}

func (f *Follower) writeMetrics(snap metrics.Snapshot) {
	if f.config.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsWriteTimeout)
	defer cancel()
	if err := f.config.Archive.WriteMetrics(ctx, snap, f.now()); err != nil {
		f.logger.Warn("metrics snapshot write failed", map[string]any{"error": err.Error()})
	}
}

func (f *Follower) fail(err error) {
	f.mu.Lock()
	if f.sinkErr == nil {
		f.sinkErr = err
	}
	f.mu.Unlock()
}

func (f *Follower) failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinkErr != nil
}
