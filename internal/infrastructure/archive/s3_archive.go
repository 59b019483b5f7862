// Package archive stores raw inbound webhook payloads for audit.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/infrastructure/config"
)

// putObjectAPI is the part of the S3 client the archive uses
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes payloads to an S3-compatible bucket under
// {prefix}{kind}/{yyyy}/{mm}/{dd}/{key}.json
type S3Archive struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// S3ArchiveOption configures an S3Archive
type S3ArchiveOption func(*S3Archive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ArchiveOption {
	return func(a *S3Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewS3Archive creates an archive from configuration. Static credentials
// are used when both keys are set, otherwise the default AWS chain.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig, opts ...S3ArchiveOption) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Archive(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3Archive(client putObjectAPI, bucket, prefix string, opts ...S3ArchiveOption) *S3Archive {
	a := &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store uploads body as a JSON object
func (a *S3Archive) Store(ctx context.Context, kind, key string, body []byte) error {
	objectKey := a.objectKey(kind, key)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload %s: %w", objectKey, err)
	}
	a.logger.Debug("Archived payload",
		zap.String("bucket", a.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(body)),
	)
	return nil
}

func (a *S3Archive) objectKey(kind, key string) string {
	if key == "" {
		key = fmt.Sprintf("%d", a.now().UnixNano())
	}
	date := a.now().UTC().Format("2006/01/02")
	return a.prefix + path.Join(sanitizeSegment(kind), date, sanitizeSegment(key)+".json")
}

// sanitizeSegment keeps a header-supplied value from escaping its folder
func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}

// NoopArchive discards payloads
type NoopArchive struct{}

// Store does nothing
func (NoopArchive) Store(context.Context, string, string, []byte) error {
	return nil
}

// New returns the S3 archive when enabled, else a NoopArchive
func New(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (integration.PayloadArchive, error) {
	if !cfg.Enabled {
		return NoopArchive{}, nil
	}
	return NewS3Archive(ctx, cfg, WithLogger(logger))
}

var (
	_ integration.PayloadArchive = (*S3Archive)(nil)
	_ integration.PayloadArchive = NoopArchive{}
)
