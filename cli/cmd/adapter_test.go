package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
)

func TestParseAdapterConfigWithPrecedence_Errors(t *testing.T) {
	tests := []struct {
		name        string
		adapterType string
		args        []string
		wantErr     string
	}{
		{"webhook without url", "webhook", nil, "--adapter-url is required"},
		{"redis without url", "redis", nil, "--adapter-url is required"},
		{"webhook with channel", "webhook", []string{"--adapter-url", "http://hook", "--adapter-channel", "c"}, "only valid for the redis adapter"},
		{"redis with header", "redis", []string{"--adapter-url", "redis://localhost:6379", "--adapter-header", "a=b"}, "only valid for the webhook adapter"},
		{"bad header", "webhook", []string{"--adapter-url", "http://hook", "--adapter-header", "nokey"}, "invalid --adapter-header"},
		{"negative retries", "webhook", []string{"--adapter-url", "http://hook", "--adapter-retries", "-1"}, "--adapter-retries must be >= 0"},
		{"unknown type", "kafka", []string{"--adapter-url", "x"}, "invalid --adapter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := withFlags(t, followFlags(), tt.args, func(c *cli.Context) error {
				_, err := parseAdapterConfigWithPrecedence(c, nil, tt.adapterType)
				return err
			})
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseAdapterConfigWithPrecedence_ConfigValues(t *testing.T) {
	retries := 7
	cfg := &sluiceconfig.Config{Adapter: sluiceconfig.AdapterConfig{
		Type:    "redis",
		URL:     "redis://cfg:6379",
		Channel: "sluice:{feed}",
		Timeout: sluiceconfig.Duration{Duration: 2 * time.Second},
		Retries: &retries,
	}}

	err := withFlags(t, followFlags(), nil, func(c *cli.Context) error {
		choice, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if choice.url != "redis://cfg:6379" || choice.channel != "sluice:{feed}" {
			t.Errorf("choice = %+v", choice)
		}
		if choice.timeout != 2*time.Second {
			t.Errorf("timeout = %v, want 2s", choice.timeout)
		}
		if choice.retries != 7 {
			t.Errorf("retries = %d, want 7", choice.retries)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestParseAdapterConfigWithPrecedence_FlagsWin(t *testing.T) {
	retries := 7
	cfg := &sluiceconfig.Config{Adapter: sluiceconfig.AdapterConfig{
		URL:     "http://cfg/hook",
		Headers: map[string]string{"X-Token": "cfg"},
		Retries: &retries,
	}}
	args := []string{
		"--adapter-url", "http://cli/hook",
		"--adapter-header", "X-Token=cli",
		"--adapter-retries", "0",
	}

	err := withFlags(t, followFlags(), args, func(c *cli.Context) error {
		choice, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if choice.url != "http://cli/hook" {
			t.Errorf("url = %q", choice.url)
		}
		if choice.headers["X-Token"] != "cli" {
			t.Errorf("headers = %v", choice.headers)
		}
		if choice.retries != 0 {
			t.Errorf("retries = %d, want 0", choice.retries)
		}
		if choice.timeout != 10*time.Second {
			t.Errorf("timeout = %v, want flag default 10s", choice.timeout)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBuildAdapter_Webhook(t *testing.T) {
	a, err := buildAdapter(&adapterChoice{adapterType: "webhook", url: "http://localhost/hook", timeout: time.Second})
	if err != nil {
		t.Fatalf("buildAdapter failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBuildAdapter_Unknown(t *testing.T) {
	if _, err := buildAdapter(&adapterChoice{adapterType: "kafka"}); err == nil {
		t.Error("expected error for unknown adapter")
	}
}
