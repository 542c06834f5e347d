package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

func TestStorageChoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		choice  storageChoice
		wantErr string
	}{
		{"disabled", storageChoice{dataset: "sluice"}, ""},
		{"fs", storageChoice{dataset: "sluice", backend: "fs", path: "/tmp/x"}, ""},
		{"s3", storageChoice{dataset: "sluice", backend: "s3", path: "bucket/prefix"}, ""},
		{"path without backend", storageChoice{dataset: "sluice", path: "/tmp/x"}, "--storage-backend is required"},
		{"backend without path", storageChoice{dataset: "sluice", backend: "fs"}, "--storage-path is required for the fs backend"},
		{"unknown backend", storageChoice{dataset: "sluice", backend: "gcs", path: "x"}, "invalid --storage-backend"},
		{"empty dataset", storageChoice{backend: "fs", path: "/tmp/x"}, "--storage-dataset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.choice.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStorageChoice_S3Config(t *testing.T) {
	s := storageChoice{backend: "s3", path: "bucket/some/prefix", region: "eu-west-1", endpoint: "http://minio:9000", pathStyle: true}
	cfg := s.s3Config()
	if cfg.Bucket != "bucket" || cfg.Prefix != "some/prefix" {
		t.Errorf("bucket/prefix = %q/%q", cfg.Bucket, cfg.Prefix)
	}
	if cfg.Region != "eu-west-1" || cfg.Endpoint != "http://minio:9000" || !cfg.UsePathStyle {
		t.Errorf("s3 config = %+v", cfg)
	}
}

func TestResolveStorage_ConfigFallback(t *testing.T) {
	cfg := &sluiceconfig.Config{Storage: sluiceconfig.StorageConfig{Backend: "fs", Path: "/cfg/path"}}

	err := withFlags(t, followFlags(), []string{"--storage-path", "/cli/path"}, func(c *cli.Context) error {
		s := resolveStorage(c, cfg)
		if s.backend != "fs" || s.path != "/cli/path" || s.dataset != "sluice" {
			t.Errorf("storage = %+v", s)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestValidatePolicyConfig(t *testing.T) {
	tests := []struct {
		name    string
		choice  policyChoice
		wantErr string
	}{
		{"strict", policyChoice{name: "strict"}, ""},
		{"noop", policyChoice{name: "noop"}, ""},
		{"buffered records", policyChoice{name: "buffered", maxRecords: 10}, ""},
		{"buffered interval only", policyChoice{name: "buffered", flushInterval: time.Second}, ""},
		{"buffered no limits", policyChoice{name: "buffered"}, "requires buffer limits"},
		{"buffered negative", policyChoice{name: "buffered", maxRecords: -1}, "buffer limits must be >= 0"},
		{"unknown", policyChoice{name: "lossy"}, "invalid --policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePolicyConfig(tt.choice)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePolicy_ConfigFallback(t *testing.T) {
	cfg := &sluiceconfig.Config{Policy: sluiceconfig.PolicyConfig{
		Name:          "buffered",
		BufferRecords: 50,
		FlushInterval: sluiceconfig.Duration{Duration: 5 * time.Second},
	}}

	err := withFlags(t, followFlags(), []string{"--buffer-bytes", "1024"}, func(c *cli.Context) error {
		p := resolvePolicy(c, cfg)
		if p.name != "buffered" || p.maxRecords != 50 || p.maxBytes != 1024 || p.flushInterval != 5*time.Second {
			t.Errorf("policy = %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBuildPolicy(t *testing.T) {
	collector := metrics.NewCollector("orders", "shop", "strict", "fs")

	for _, name := range []string{"strict", "buffered", "noop"} {
		t.Run(name, func(t *testing.T) {
			sink := policy.NewStubSink()
			pol, err := buildPolicy(policyChoice{name: name, maxRecords: 10}, sink, collector, log.Nop())
			if err != nil {
				t.Fatalf("buildPolicy failed: %v", err)
			}
			if err := pol.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}

	if _, err := buildPolicy(policyChoice{name: "lossy"}, policy.NewStubSink(), collector, log.Nop()); err == nil {
		t.Error("expected error for unknown policy")
	}
}
