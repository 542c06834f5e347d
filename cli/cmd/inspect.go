package cmd

import (
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/checkpoint"
	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/cli/reader"
	"github.com/pithecene-io/sluice/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single piece of local state.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect local state (checkpoint)",
		Subcommands: []*cli.Command{
			inspectCheckpointCommand(),
		},
	}
}

func inspectCheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:      "checkpoint",
		Usage:     "Show the cursor saved in a checkpoint file",
		ArgsUsage: "[path]",
		Flags:     append(ReadOnlyFlags(), ConfigFlag),
		Action:    inspectCheckpointAction,
	}
}

func inspectCheckpointAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return configExit("%v", err)
		}
		path = configVal(cfg, func(c *sluiceconfig.Config) string { return c.Checkpoint.Path })
	}
	if path == "" {
		return cli.Exit("checkpoint path required (argument or checkpoint.path in the config file)", 1)
	}

	info, err := reader.ReadCheckpoint(path, time.Now())
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return cli.Exit("no checkpoint at "+path, 1)
		}
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_checkpoint", info)
	}
	return r.Render(info)
}
