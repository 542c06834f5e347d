package lode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config locates the archive inside an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key. Optional.
	Prefix string
	// Region overrides the region from the default AWS chain.
	Region string
	// Endpoint selects an S3-compatible provider (R2, MinIO). Must be an
	// absolute http(s) URL when set.
	Endpoint     string
	UsePathStyle bool
}

// Validate checks the bucket and endpoint.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("S3 endpoint %q must be an http(s) URL", c.Endpoint)
		}
	}
	return nil
}

// ParseS3Path splits "bucket/prefix" into its parts. An "s3://" scheme and
// surrounding slashes on the prefix are dropped.
func ParseS3Path(path string) (bucket, prefix string) {
	path = strings.TrimPrefix(path, "s3://")
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewLodeS3Client opens the archive in S3 using the AWS default credential
// chain (env vars, shared config, IAM role).
func NewLodeS3Client(ctx context.Context, cfg Config, s3cfg S3Config) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := newS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg), nil
}

func newS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newS3Client(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	storeCfg := lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix}
	return func() (lode.Store, error) {
		return lodes3.New(client, storeCfg)
	}, nil
}

func newS3Client(ctx context.Context, s3cfg S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = &s3cfg.Endpoint
		}
		o.UsePathStyle = s3cfg.UsePathStyle
	}), nil
}
