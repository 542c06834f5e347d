// Package feed implements a resilient change-feed consumer.
//
// A Consumer opens a continuous change stream, frames and decodes its
// newline-delimited records, tracks the sequence cursor and reconnects
// with incremental backoff whenever the stream ends or fails. An optional
// pre-fetch phase runs snapshot view queries first and starts the stream
// at the sequence marker of the query that completed last.
package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
)

// DefaultParallel bounds concurrent view queries when Config.Parallel is unset.
const DefaultParallel = 4

// ViewQuery configures one pre-fetch query.
type ViewQuery struct {
	Path  string
	Query map[string]any
}

// Config configures a Consumer. The store endpoint belongs to the Transport.
type Config struct {
	// Since is the starting cursor. Empty means StartCursor.
	Since Cursor
	// Retry configures reconnection. Nil means DefaultRetryConfig.
	Retry *RetryConfig
	// Views maps view name to query.
	Views map[string]ViewQuery
	// Parallel bounds concurrent view queries. Zero means DefaultParallel.
	Parallel int
}

// ViewSpecs returns the configured views sorted by name.
func (c Config) ViewSpecs() []ViewSpec {
	specs := make([]ViewSpec, 0, len(c.Views))
	for name, v := range c.Views {
		specs = append(specs, ViewSpec{Name: name, Path: v.Path, Query: v.Query})
	}
	slices.SortFunc(specs, func(a, b ViewSpec) int { return cmp.Compare(a.Name, b.Name) })
	return specs
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the consumer logger. Defaults to log.Nop().
func WithLogger(l *log.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// WithCollector sets the metrics collector. Defaults to nil (no metrics).
func WithCollector(m *metrics.Collector) Option {
	return func(c *Consumer) { c.collector = m }
}

// Consumer follows one change feed.
//
// The cursor and retry state are owned by the consumer and mutated only by
// the active session. Handlers registered with On are read-only observers.
type Consumer struct {
	transport Transport
	views     []ViewSpec
	parallel  int
	backoff   Backoff
	events    *registry
	logger    *log.Logger
	collector *metrics.Collector

	mu         sync.Mutex
	cursor     Cursor
	retry      RetryState
	state      SessionState
	running    bool
	onConnect  func(error)
	connectSet bool // one-shot: connect callback consumed
}

// New creates a Consumer reading from t.
func New(cfg Config, t Transport, opts ...Option) *Consumer {
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = DefaultParallel
	}

	c := &Consumer{
		transport: t,
		views:     cfg.ViewSpecs(),
		parallel:  cfg.Parallel,
		backoff:   NewBackoff(retry),
		events:    newRegistry(),
		logger:    log.Nop(),
		cursor:    cfg.Since.OrStart(),
		retry:     RetryState{Enabled: retry.Enabled},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers h for events of the given kind.
func (c *Consumer) On(kind EventKind, h Handler) {
	c.events.on(kind, h)
}

// Cursor returns the latest cursor.
func (c *Consumer) Cursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// RetryState returns a copy of the retry state.
func (c *Consumer) RetryState() RetryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

// State returns the current session state.
func (c *Consumer) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DisableRetry stops automatic reconnection. It takes effect on the next
// failure and cannot be undone. Safe to call from handlers and from the
// connect callback.
func (c *Consumer) DisableRetry() {
	c.mu.Lock()
	c.retry.Enabled = false
	c.mu.Unlock()
}

// Listen runs the stream session until ctx is cancelled or a failure
// occurs with retry disabled. start overrides the current cursor when
// non-nil.
//
// onConnected, if non-nil, is called at most once over the consumer
// lifetime: with nil when the first response arrives, or with the error
// if a failure comes first. Later failures are emitted as EventChangesError.
//
// A stream that ends without error is reopened immediately with no delay,
// so a server that answers and closes at once is polled in a tight loop.
func (c *Consumer) Listen(ctx context.Context, start *Cursor, onConnected func(error)) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if start != nil {
		c.cursor = start.OrStart()
	}
	if !c.connectSet {
		c.onConnect = onConnected
	}
	c.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.setState(StateConnecting)
		c.collector.IncSessionStarted()
		sess := newSession(c, c.Cursor())
		err := sess.run(ctx)
		if err == nil {
			c.setState(StateEnded)
			c.collector.IncGracefulEnd()
			sess.logger.Info("change stream ended, reconnecting", map[string]any{"cursor": c.Cursor().String()})
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.reportFailure(err)
		sess.logger.Warn("change stream failed", failureFields(err))

		delay, state, ok := c.planRetry()
		if !ok {
			c.setState(StateTerminated)
			sess.logger.Error("retry disabled, stopping", map[string]any{"cursor": c.Cursor().String()})
			return fmt.Errorf("%w: %w", ErrRetryDisabled, err)
		}

		c.setState(StateConnecting)
		c.collector.IncReconnectPlanned()
		sess.logger.Info("reconnect scheduled", map[string]any{
			"delay_ms": delay.Milliseconds(),
			"attempt":  state.Attempts,
		})
		c.events.emit(Event{
			Kind:    EventReconnect,
			Cursor:  c.Cursor(),
			Err:     err,
			Delay:   delay,
			Attempt: state.Attempts,
		})
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Query runs the pre-fetch phase only and moves the cursor to the resolved
// marker. With no views configured it returns the current cursor.
func (c *Consumer) Query(ctx context.Context) (Cursor, error) {
	if err := c.acquire(); err != nil {
		return "", err
	}
	defer c.release()
	return c.query(ctx)
}

// QueryAndListen runs the pre-fetch phase and then listens from the
// resolved cursor. A pre-fetch failure is returned without listening.
func (c *Consumer) QueryAndListen(ctx context.Context, onConnected func(error)) error {
	cursor, err := c.Query(ctx)
	if err != nil {
		return err
	}
	return c.Listen(ctx, &cursor, onConnected)
}

func (c *Consumer) query(ctx context.Context) (Cursor, error) {
	o := NewOrchestrator(c.transport, c.parallel, c.events.emit)
	o.logger = c.logger
	o.collector = c.collector

	cursor, err := o.RunAll(ctx, c.views, c.Cursor())
	if err != nil {
		return "", err
	}
	c.setCursor(cursor)
	return cursor, nil
}

func (c *Consumer) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTerminated {
		return ErrTerminated
	}
	if c.running {
		return ErrAlreadyListening
	}
	c.running = true
	return nil
}

func (c *Consumer) release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Consumer) setState(s SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Consumer) setCursor(cursor Cursor) {
	c.mu.Lock()
	c.cursor = cursor
	c.mu.Unlock()
}

// takeConnectCallback consumes the one-shot connect flag. It reports
// whether this call consumed it, and returns the callback, which may be nil.
func (c *Consumer) takeConnectCallback() (func(error), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectSet {
		return nil, false
	}
	c.connectSet = true
	cb := c.onConnect
	c.onConnect = nil
	return cb, true
}

// markConnected records the first response. Called by the session.
func (c *Consumer) markConnected() {
	c.setState(StateStreaming)
	if cb, first := c.takeConnectCallback(); first && cb != nil {
		cb(nil)
	}
}

// reportFailure routes a session failure to the connect callback if it is
// still pending, otherwise to EventChangesError. Without a callback the
// first failure is emitted as an event as well.
func (c *Consumer) reportFailure(err error) {
	var se *SessionError
	if errors.As(err, &se) && se.Kind == SessionConnect {
		c.collector.IncConnectFailure()
	} else {
		c.collector.IncStreamError()
	}

	if cb, first := c.takeConnectCallback(); first && cb != nil {
		cb(err)
		return
	}
	c.events.emit(Event{Kind: EventChangesError, Cursor: c.Cursor(), Err: err})
}

// temporary is implemented by transport errors that know whether a
// repeated request may succeed, such as couch.StatusError.
type temporary interface {
	Temporary() bool
}

func failureFields(err error) map[string]any {
	fields := map[string]any{"error": err.Error()}
	var t temporary
	if errors.As(err, &t) {
		fields["temporary"] = t.Temporary()
	}
	return fields
}

// planRetry advances the backoff state. ok is false when retry is disabled.
func (c *Consumer) planRetry() (time.Duration, RetryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.retry.Enabled {
		return 0, c.retry, false
	}
	delay, next := c.backoff.Next(c.retry)
	c.retry = next
	return delay, next, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
