package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/feed"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/runtime"
)

// QueryCommand returns the query command.
// Query runs the pre-fetch views once and reports the resolved cursor
// without opening the change stream.
func QueryCommand() *cli.Command {
	flags := append(connectionFlags(), ReadOnlyFlags()...)
	return &cli.Command{
		Name:   "query",
		Usage:  "Run the pre-fetch views and report row counts and the resolved cursor",
		Flags:  append(flags, &cli.StringFlag{Name: "since", Usage: "Cursor reported when no view returns update_seq"}),
		Action: queryAction,
	}
}

func queryAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return configExit("%v", err)
	}
	src, err := resolveSource(c, cfg)
	if err != nil {
		return configExit("%v", err)
	}
	defer iox.DiscardClose(src.client)
	if len(src.views) == 0 {
		return configExit("no views configured: use --view name=path or the views section of the config file")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	since := resolveString(c, "since", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Since }))
	result, err := runQuery(ctx, src.client, src, feed.Cursor(since))
	if err != nil {
		return cli.Exit(fmt.Sprintf("pre-fetch failed: %v", err), runtime.ExitCodeTerminated)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_query", result)
	}
	return r.Render(result)
}

// runQuery runs every configured view through a consumer and collects
// per-view results.
func runQuery(ctx context.Context, t feed.Transport, src *source, since feed.Cursor) (*reader.QueryResult, error) {
	consumer := feed.New(feed.Config{
		Since:    since,
		Views:    src.views,
		Parallel: src.parallel,
	}, t)

	names := make([]string, 0, len(src.views))
	for name := range src.views {
		names = append(names, name)
	}
	slices.Sort(names)

	collector := reader.NewQueryCollector(src.database)
	for _, name := range names {
		consumer.On(feed.ViewEventKind(name), collector.Observe)
	}

	cursor, err := consumer.Query(ctx)
	if err != nil {
		return nil, err
	}
	return collector.Result(names, cursor), nil
}
