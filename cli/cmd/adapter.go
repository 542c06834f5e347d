package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/adapter/redis"
	"github.com/pithecene-io/sluice/adapter/webhook"
	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
)

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter flags over config values.
// adapterType has already been resolved and is non-empty.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *sluiceconfig.Config, adapterType string) (*adapterChoice, error) {
	ac := configVal(cfg, func(c *sluiceconfig.Config) sluiceconfig.AdapterConfig { return c.Adapter })

	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", ac.URL),
		channel:     resolveString(c, "adapter-channel", ac.Channel),
		timeout:     resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries:     c.Int("adapter-retries"),
	}
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		choice.retries = *ac.Retries
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}

	headers, err := resolveHeaders(c, "adapter-header", ac.Headers)
	if err != nil {
		return nil, err
	}
	choice.headers = headers

	switch adapterType {
	case "webhook":
		if choice.url == "" {
			return nil, errors.New("--adapter-url is required for the webhook adapter")
		}
		if choice.channel != "" {
			return nil, errors.New("--adapter-channel is only valid for the redis adapter")
		}
	case "redis":
		if choice.url == "" {
			return nil, errors.New("--adapter-url is required for the redis adapter (redis://host:port)")
		}
		if len(choice.headers) > 0 {
			return nil, errors.New("--adapter-header is only valid for the webhook adapter")
		}
	default:
		return nil, fmt.Errorf("invalid --adapter %q (must be webhook or redis)", adapterType)
	}
	return choice, nil
}

func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", choice.adapterType)
	}
}
