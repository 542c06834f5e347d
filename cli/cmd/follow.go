package cmd

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/checkpoint"
	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/couch"
	"github.com/pithecene-io/sluice/feed"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
	"github.com/pithecene-io/sluice/runtime"
	"github.com/pithecene-io/sluice/types"
)

// FollowCommand returns the follow command.
// Follow is the only command that consumes the change feed continuously.
func FollowCommand() *cli.Command {
	return &cli.Command{
		Name:   "follow",
		Usage:  "Follow a database change feed (optionally pre-fetching views first)",
		Flags:  followFlags(),
		Action: followAction,
	}
}

// configExit reports a configuration error with the config exit code.
func configExit(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), runtime.ExitCodeConfig)
}

// source holds the resolved connection shared by follow and query.
type source struct {
	client   *couch.Client
	feedName string
	database string
	views    map[string]feed.ViewQuery
	parallel int
}

func resolveSource(c *cli.Context, cfg *sluiceconfig.Config) (*source, error) {
	rawURL := resolveString(c, "url", configVal(cfg, func(c *sluiceconfig.Config) string { return c.URL }))
	if rawURL == "" {
		return nil, errors.New("--url is required (or set url in the config file)")
	}

	headers, err := resolveHeaders(c, "header", configVal(cfg, func(c *sluiceconfig.Config) map[string]string { return c.Headers }))
	if err != nil {
		return nil, err
	}

	client, err := couch.New(couch.Config{
		URL:       rawURL,
		Headers:   headers,
		Timeout:   resolveDuration(c, "timeout", configVal(cfg, func(c *sluiceconfig.Config) time.Duration { return c.Timeout.Duration })),
		Heartbeat: resolveDuration(c, "heartbeat", configVal(cfg, func(c *sluiceconfig.Config) time.Duration { return c.Heartbeat.Duration })),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid --url: %w", err)
	}

	views, err := resolveViews(c, cfg)
	if err != nil {
		return nil, err
	}

	parallel := resolveInt(c, "parallel", configVal(cfg, func(c *sluiceconfig.Config) int { return c.Parallel }))
	if parallel < 1 {
		return nil, fmt.Errorf("--parallel must be >= 1, got %d", parallel)
	}

	database := client.Database()
	feedName := resolveString(c, "feed", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Feed }))
	if feedName == "" {
		feedName = database
	}
	if feedName == "" {
		return nil, errors.New("--feed is required when the URL has no database path")
	}

	return &source{client: client, feedName: feedName, database: database, views: views, parallel: parallel}, nil
}

// resolveViews merges config views with repeated --view name=path flags.
func resolveViews(c *cli.Context, cfg *sluiceconfig.Config) (map[string]feed.ViewQuery, error) {
	views := map[string]feed.ViewQuery{}
	if cfg != nil {
		for name, v := range cfg.FeedViews() {
			views[name] = v
		}
	}
	for _, v := range c.StringSlice("view") {
		name, path, ok := strings.Cut(v, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --view %q: expected name=path", v)
		}
		views[name] = feed.ViewQuery{Path: path}
	}
	if len(views) == 0 {
		return nil, nil
	}
	return views, nil
}

func resolveRetry(c *cli.Context, cfg *sluiceconfig.Config) *feed.RetryConfig {
	rc := feed.DefaultRetryConfig()
	if cfg != nil {
		rc = cfg.FeedRetry()
	}
	if c.IsSet("retry-step") {
		rc.Step = c.Duration("retry-step")
	}
	if c.IsSet("retry-max") {
		rc.Max = c.Duration("retry-max")
	}
	return &rc
}

func newLogger(meta *types.FeedMeta, level string, w io.Writer) (*log.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return log.NewLoggerWithWriter(meta, w, lvl), nil
}

func followAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit("%v", err)
	}

	src, err := resolveSource(c, cfg)
	if err != nil {
		return configExit("%v", err)
	}
	defer iox.DiscardClose(src.client)

	meta := types.FeedMeta{Name: src.feedName, Database: src.database}
	logger, err := newLogger(&meta, c.String("log-level"), c.App.ErrWriter)
	if err != nil {
		return configExit("%v", err)
	}

	// Checkpoint: resume from the saved cursor unless --since overrides it.
	since := resolveString(c, "since", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Since }))
	ckptPath := resolveString(c, "checkpoint", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Checkpoint.Path }))
	var (
		recorder *checkpoint.Recorder
		base     *checkpoint.Checkpoint
	)
	if ckptPath != "" {
		store := checkpoint.NewFileStore(ckptPath)
		base, err = store.Load()
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			base = nil
		case err != nil:
			return configExit("cannot resume from checkpoint %s: %v", ckptPath, err)
		}
		if base != nil && (base.Feed != src.feedName || base.Database != src.database) {
			logger.Warn("checkpoint belongs to another feed", map[string]any{
				"checkpoint_feed":     base.Feed,
				"checkpoint_database": base.Database,
			})
		}
		if since == "" && base != nil {
			since = base.Cursor.String()
		}
		every := resolveInt(c, "checkpoint-every", configVal(cfg, func(c *sluiceconfig.Config) int { return c.Checkpoint.Every }))
		recorder = checkpoint.NewRecorder(store, every, src.feedName, src.database, base)
	}

	storage := resolveStorage(c, cfg)
	if err := storage.validate(); err != nil {
		return configExit("%v", err)
	}
	choice := resolvePolicy(c, cfg)
	if err := validatePolicyConfig(choice); err != nil {
		return configExit("invalid policy config: %v", err)
	}

	policyName, backend := "", ""
	if storage.enabled() {
		policyName, backend = choice.name, storage.backend
	}
	collector := metrics.NewCollector(src.feedName, src.database, policyName, backend)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		archive lode.Client
		pol     policy.Policy
	)
	if storage.enabled() {
		archive, err = buildArchive(ctx, storage, src.feedName, src.database)
		if err != nil {
			return configExit("failed to initialize storage: %v", err)
		}
		pol, err = buildPolicy(choice, lode.NewSink(archive), collector, logger)
		if err != nil {
			return configExit("failed to create policy: %v", err)
		}
	}

	var pub adapter.Adapter
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Adapter.Type })); adapterType != "" {
		ac, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return configExit("%v", err)
		}
		pub, err = buildAdapter(ac)
		if err != nil {
			return configExit("failed to create adapter: %v", err)
		}
		defer iox.DiscardClose(pub)
	}

	consumer := feed.New(feed.Config{
		Since:    feed.Cursor(since),
		Retry:    resolveRetry(c, cfg),
		Views:    src.views,
		Parallel: src.parallel,
	}, src.client, feed.WithLogger(logger), feed.WithCollector(collector))
	if c.Bool("no-retry") {
		consumer.DisableRetry()
	}

	var out io.Writer
	if !c.Bool("quiet") {
		out = c.App.Writer
	}

	follower, err := runtime.NewFollower(&runtime.FollowConfig{
		Meta:       meta,
		Consumer:   consumer,
		Prefetch:   c.Bool("prefetch"),
		FailFast:   c.Bool("fail-fast"),
		Policy:     pol,
		PolicyName: policyName,
		Adapter:    pub,
		Output:     out,
		Recorder:   recorder,
		Archive:    archive,
		Collector:  collector,
		Logger:     logger,
	})
	if err != nil {
		return configExit("%v", err)
	}

	logger.Info("following change feed", map[string]any{
		"url":    src.client.Redacted(),
		"since":  feed.Cursor(since).OrStart().String(),
		"views":  len(src.views),
		"policy": policyName,
	})

	result := follower.Execute(ctx)

	if path := c.String("report"); path != "" {
		if err := runtime.WriteFollowReport(follower.BuildFollowReport(result), path); err != nil {
			logger.Warn("report write failed", map[string]any{"error": err.Error()})
		}
	}
	iox.DiscardErr(logger.Sync)

	code := result.Outcome.ExitCode()
	if code == runtime.ExitCodeOK {
		return nil
	}
	return cli.Exit(fmt.Sprintf("follow %s: %s", result.Outcome.Status, result.Outcome.Message), code)
}
