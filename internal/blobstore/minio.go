package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/greengig/greengig/internal/provider/resilience"
)

// ProviderName is the name the MinIO store registers under.
const ProviderName = "minio"

// MinioConfig configures a MinIO or S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	Region    string

	// CreateBucket makes the bucket at startup if it is missing.
	CreateBucket bool

	// Retry bounds upload retries. Uploads are idempotent per key.
	Retry resilience.RetryConfig

	// Timeout bounds one upload attempt. Default: 20 seconds
	Timeout time.Duration

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// ObjectAPI is the subset of *minio.Client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

var _ ObjectAPI = (*minio.Client)(nil)

// MinioStore uploads proof images to a bucket.
type MinioStore struct {
	api      ObjectAPI
	bucket   string
	retry    resilience.RetryConfig
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker[minio.UploadInfo]
	registry *resilience.Registry
	logger   zerolog.Logger
}

var (
	_ Store                   = (*MinioStore)(nil)
	_ resilience.HealthSource = (*MinioStore)(nil)
)

// NewMinio connects to the endpoint in cfg and checks the bucket.
func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewMinioWithAPI(ctx, client, cfg)
}

// NewMinioWithAPI builds a store over an existing client.
func NewMinioWithAPI(ctx context.Context, api ObjectAPI, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
		}
		if err := api.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		cfg.Logger.Info().Str("bucket", cfg.Bucket).Msg("created proof image bucket")
	}

	cbCfg := resilience.DefaultCircuitBreakerConfig(ProviderName)
	cbCfg.Logger = cfg.Logger

	s := &MinioStore{
		api:      api,
		bucket:   cfg.Bucket,
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		cb:       resilience.NewCircuitBreaker[minio.UploadInfo](cbCfg),
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	if s.registry != nil {
		s.registry.Register(ProviderName, s)
	}
	return s, nil
}

// Put uploads data, retrying transient failures. The reference has the form
// s3://bucket/key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	err := resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.cb.Execute(func() (minio.UploadInfo, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return s.api.PutObject(attemptCtx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
				minio.PutObjectOptions{ContentType: contentType})
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("proof image upload failed")
			if isPermanent(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if s.registry != nil {
			s.registry.RecordFailure(ProviderName, err)
		}
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	if s.registry != nil {
		s.registry.RecordSuccess(ProviderName)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// CircuitBreakerState returns the upload circuit breaker state.
func (s *MinioStore) CircuitBreakerState() gobreaker.State {
	return s.cb.State()
}

// CircuitBreakerCounts returns the upload circuit breaker counts.
func (s *MinioStore) CircuitBreakerCounts() gobreaker.Counts {
	return s.cb.Counts()
}

func isPermanent(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "NoSuchBucket", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidBucketName":
		return true
	}
	return false
}
