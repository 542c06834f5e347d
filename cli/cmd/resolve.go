package cmd

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
)

// Flag precedence: an explicitly set CLI flag wins, then the config file,
// then the flag's own default.

// configVal reads a value from cfg, tolerating a nil config.
func configVal[T any](cfg *sluiceconfig.Config, get func(*sluiceconfig.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int64(name)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// resolveHeaders merges config headers with repeated key=value flags.
// Flag values override config entries with the same key.
func resolveHeaders(c *cli.Context, name string, cfgVal map[string]string) (map[string]string, error) {
	headers := make(map[string]string, len(cfgVal))
	maps.Copy(headers, cfgVal)
	for _, h := range c.StringSlice(name) {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --%s %q: expected key=value", name, h)
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return headers, nil
}

// loadConfig loads the --config file if given. A nil config means none.
func loadConfig(c *cli.Context) (*sluiceconfig.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	return sluiceconfig.Load(path)
}
