// Package s3 implements the PackVault object store on an S3-compatible
// bucket using the AWS SDK v2. All PackVault keys live under an optional
// key prefix inside a single bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/storage"
)

// Options configure the S3 object store.
type Options struct {
	// Endpoint overrides the S3 endpoint, for MinIO and other
	// S3-compatible stores. Empty means AWS.
	Endpoint string

	// Region is the bucket region.
	Region string

	// Bucket is the bucket holding all PackVault blobs.
	Bucket string

	// Prefix is prepended to every key (no trailing slash needed).
	Prefix string

	// AccessKeyID and SecretAccessKey are static credentials. When both
	// are empty the SDK's default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	UsePathStyle bool
}

// Store implements storage.ObjectStore backed by an S3 bucket.
type Store struct {
	client *awss3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// New builds an S3 object store from options.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Store{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.TrimSuffix(opts.Prefix, "/"),
		logger: logger.With().Str("storage", "s3").Str("bucket", opts.Bucket).Logger(),
	}, nil
}

// NewWithClient wraps an existing S3 client; used by tests.
func NewWithClient(client *awss3.Client, bucket, prefix string, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger.With().Str("storage", "s3").Str("bucket", bucket).Logger(),
	}
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Put stores the bytes readable from r at key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	input := &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int64("size", size).Msg("blob stored")
	return nil
}

// Get retrieves the blob at key.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

// Exists reports whether a blob exists at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the blob at key. S3 deletes are idempotent, so a missing
// key is reported as domain.ErrBlobNotFound only when it can be detected.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// Ensure Store implements ObjectStore.
var _ storage.ObjectStore = (*Store)(nil)
