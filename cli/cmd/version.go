package cmd

import (
	goruntime "runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/types"
)

// VersionResponse describes the running binary.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
}

func currentVersion(commit string) VersionResponse {
	if commit == "" {
		commit = "unknown"
	}
	return VersionResponse{
		Version:         types.Version,
		ContractVersion: types.ContractVersion,
		Commit:          commit,
		GoVersion:       goruntime.Version(),
		Platform:        goruntime.GOOS + "/" + goruntime.GOARCH,
	}
}

// VersionCommand prints build information. It never contacts the database.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return configExit("--tui is not supported for the version command")
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(currentVersion(commit))
		},
	}
}
