// Package redis implements a Redis pub/sub adapter.
//
// Every change event is PUBLISHed as JSON on a per-feed channel. The same
// transaction records the event's sequence under a per-feed key so a
// subscriber that joins late can learn where the stream currently stands.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/sluice/adapter"
)

// feedPlaceholder in a channel or key template is replaced with the feed name.
const feedPlaceholder = "{feed}"

// DefaultChannel is the default pub/sub channel template.
const DefaultChannel = "sluice:" + feedPlaceholder + ":changes"

// DefaultSeqKey is the default template of the key holding the last
// published sequence.
const DefaultSeqKey = "sluice:" + feedPlaceholder + ":seq"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

const retryBase = 500 * time.Millisecond

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel template (default sluice:{feed}:changes).
	Channel string
	// SeqKey is the last-sequence key template (default sluice:{feed}:seq).
	SeqKey string
	// Timeout bounds a single attempt (default 5s).
	Timeout time.Duration
	// Retries is the number of attempts after the first (default 3).
	Retries int
}

// Adapter publishes change events via Redis PUBLISH.
type Adapter struct {
	channel string
	seqKey  string
	timeout time.Duration
	retries int
	client  *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	a := &Adapter{
		channel: cmpOr(cfg.Channel, DefaultChannel),
		seqKey:  cmpOr(cfg.SeqKey, DefaultSeqKey),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		client:  goredis.NewClient(opts),
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	return a, nil
}

func cmpOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func expand(template, feedName string) string {
	return strings.ReplaceAll(template, feedPlaceholder, feedName)
}

// ChannelFor returns the channel events for feedName are published to.
func (a *Adapter) ChannelFor(feedName string) string {
	return expand(a.channel, feedName)
}

// SeqKeyFor returns the key holding the last sequence published for feedName.
func (a *Adapter) SeqKeyFor(feedName string) string {
	return expand(a.seqKey, feedName)
}

// Publish sends the event and records its sequence in one MULTI/EXEC.
// Every failure is retried until the budget or ctx runs out.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.ChannelFor(event.Feed)
	key := a.SeqKeyFor(event.Feed)

	return adapter.Retry(ctx, "redis", a.retries, retryBase, nil, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		_, err := a.client.TxPipelined(attemptCtx, func(p goredis.Pipeliner) error {
			p.Publish(attemptCtx, channel, body)
			p.Set(attemptCtx, key, event.Seq, 0)
			return nil
		})
		return err
	})
}

// Close closes the underlying connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
