package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	sluiceconfig "github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
)

// storageChoice holds resolved archive configuration.
type storageChoice struct {
	dataset   string
	backend   string // "fs" or "s3"; empty disables the archive
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

func resolveStorage(c *cli.Context, cfg *sluiceconfig.Config) storageChoice {
	sc := configVal(cfg, func(c *sluiceconfig.Config) sluiceconfig.StorageConfig { return c.Storage })
	return storageChoice{
		dataset:   resolveString(c, "storage-dataset", sc.Dataset),
		backend:   resolveString(c, "storage-backend", sc.Backend),
		path:      resolveString(c, "storage-path", sc.Path),
		region:    resolveString(c, "storage-region", sc.Region),
		endpoint:  resolveString(c, "storage-endpoint", sc.Endpoint),
		pathStyle: resolveBool(c, "storage-s3-path-style", sc.S3PathStyle),
	}
}

func (s storageChoice) enabled() bool {
	return s.backend != "" || s.path != ""
}

func (s storageChoice) validate() error {
	if !s.enabled() {
		return nil
	}
	switch s.backend {
	case "fs", "s3":
	case "":
		return errors.New("--storage-backend is required when --storage-path is set (fs or s3)")
	default:
		return fmt.Errorf("invalid --storage-backend %q (must be fs or s3)", s.backend)
	}
	if s.path == "" {
		return fmt.Errorf("--storage-path is required for the %s backend", s.backend)
	}
	if s.dataset == "" {
		return errors.New("--storage-dataset must not be empty")
	}
	return nil
}

func (s storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(s.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.region,
		Endpoint:     s.endpoint,
		UsePathStyle: s.pathStyle,
	}
}

// buildArchive creates the archive client for a validated, enabled choice.
func buildArchive(ctx context.Context, s storageChoice, feedName, database string) (lode.Client, error) {
	cfg := lode.Config{Dataset: s.dataset, Feed: feedName, Database: database}
	switch s.backend {
	case "fs":
		return lode.NewLodeClient(cfg, s.path)
	case "s3":
		return lode.NewLodeS3Client(ctx, cfg, s.s3Config())
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", s.backend)
	}
}

// buildReadDataset opens the archive for reading.
func buildReadDataset(ctx context.Context, s storageChoice) (lodelibrary.Dataset, error) {
	switch s.backend {
	case "fs":
		return lode.NewReadDatasetFS(s.dataset, s.path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, s.dataset, s.s3Config())
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be fs or s3)", s.backend)
	}
}

// policyChoice holds resolved policy configuration.
type policyChoice struct {
	name          string
	maxRecords    int
	maxBytes      int64
	flushInterval time.Duration
}

func resolvePolicy(c *cli.Context, cfg *sluiceconfig.Config) policyChoice {
	pc := configVal(cfg, func(c *sluiceconfig.Config) sluiceconfig.PolicyConfig { return c.Policy })
	return policyChoice{
		name:          resolveString(c, "policy", pc.Name),
		maxRecords:    resolveInt(c, "buffer-records", pc.BufferRecords),
		maxBytes:      resolveInt64(c, "buffer-bytes", pc.BufferBytes),
		flushInterval: resolveDuration(c, "flush-interval", pc.FlushInterval.Duration),
	}
}

func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case "strict", "noop":
		return nil
	case "buffered":
		if choice.maxRecords < 0 || choice.maxBytes < 0 {
			return errors.New("buffer limits must be >= 0")
		}
		if choice.maxRecords == 0 && choice.maxBytes == 0 && choice.flushInterval <= 0 {
			return errors.New("buffered policy requires buffer limits: --buffer-records, --buffer-bytes or --flush-interval")
		}
		return nil
	default:
		return fmt.Errorf("invalid --policy %q (must be strict, buffered or noop)", choice.name)
	}
}

// buildPolicy wraps sink with the chosen policy. Writes are counted in collector.
func buildPolicy(choice policyChoice, sink policy.Sink, collector *metrics.Collector, logger *log.Logger) (policy.Policy, error) {
	instrumented := lode.NewInstrumentedSink(sink, collector)
	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(instrumented), nil
	case "buffered":
		return policy.NewBufferedPolicy(instrumented, policy.BufferedConfig{
			MaxRecords:    choice.maxRecords,
			MaxBytes:      choice.maxBytes,
			FlushInterval: choice.flushInterval,
			Logger:        logger,
		})
	case "noop":
		return policy.NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}
