package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/couch"
	"github.com/pithecene-io/sluice/lode"
)

// statsReadTimeout bounds an archive scan.
const statsReadTimeout = 30 * time.Second

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts read back from the archive.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated statistics from the archive",
		Subcommands: []*cli.Command{
			statsMetricsCommand(),
		},
	}
}

func statsMetricsCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), storageReadFlags()...)
	return &cli.Command{
		Name:  "metrics",
		Usage: "Show the latest persisted metrics snapshot of a feed",
		Flags: append(flags,
			&cli.StringFlag{Name: "database", Usage: "Database partition (default: from the config url)"},
			&cli.StringFlag{Name: "feed", Usage: "Feed name filter"},
		),
		Action: statsMetricsAction,
	}
}

func statsMetricsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit("%v", err)
	}

	storage := resolveStorage(c, cfg)
	if !storage.enabled() {
		return configExit("both --storage-backend and --storage-path are required to read metrics")
	}
	if err := storage.validate(); err != nil {
		return configExit("%v", err)
	}

	database, err := resolveDatabase(c, cfg)
	if err != nil {
		return configExit("%v", err)
	}
	feedName := resolveString(c, "feed", configVal(cfg, func(c *sluiceconfig.Config) string { return c.Feed }))

	ctx, cancel := context.WithTimeout(c.Context, statsReadTimeout)
	defer cancel()

	snapshot, err := readLatestMetrics(ctx, storage, database, feedName)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_metrics", snapshot)
	}
	return r.Render(snapshot)
}

// resolveDatabase prefers --database, then the database segment of the config url.
func resolveDatabase(c *cli.Context, cfg *sluiceconfig.Config) (string, error) {
	if db := c.String("database"); db != "" {
		return db, nil
	}
	if cfg != nil && cfg.URL != "" {
		client, err := couch.New(couch.Config{URL: cfg.URL})
		if err != nil {
			return "", fmt.Errorf("invalid url in config: %w", err)
		}
		if db := client.Database(); db != "" {
			return db, nil
		}
	}
	return "", errors.New("--database is required (or set url in the config file)")
}

func readLatestMetrics(ctx context.Context, storage storageChoice, database, feedName string) (*reader.MetricsSnapshot, error) {
	ds, err := buildReadDataset(ctx, storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage reader: %w", err)
	}

	record, err := lode.QueryLatestMetrics(ctx, ds, database, feedName)
	if err != nil {
		if errors.Is(err, lode.ErrNoMetricsFound) {
			return nil, cli.Exit(fmt.Sprintf("no metrics found for database %q", database), 1)
		}
		return nil, fmt.Errorf("failed to read metrics from archive: %w", err)
	}

	snapshot, err := reader.ParseMetricsRecord(record)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics record: %w", err)
	}
	return snapshot, nil
}
