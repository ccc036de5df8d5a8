// Package minio reads source documents referenced by historical records.
// Only the narrative path touches object storage; the numeric path never
// depends on it, so every failure here is recoverable by returning an
// estimate without supporting text.
package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// objectAPI is the SDK subset in use; tests substitute a fake.
type objectAPI interface {
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// sdkAdapter bridges the SDK client to objectAPI.
type sdkAdapter struct {
	c *minio.Client
}

func (a sdkAdapter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return a.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

func (a sdkAdapter) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

// Config holds object-storage connection parameters.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client reads source documents from one bucket.
type Client struct {
	api    objectAPI
	bucket string
	logger logging.Logger
}

// newSDKClient is swappable for tests.
var newSDKClient = func(cfg Config) (objectAPI, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return sdkAdapter{c: c}, nil
}

// NewClient builds a Client.  Bucket existence is checked lazily on first
// read, not here: object storage being down must not block startup of the
// numeric path.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio: bucket is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	api, err := newSDKClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "minio client creation failed")
	}
	return &Client{api: api, bucket: cfg.Bucket, logger: logger.Named("minio")}, nil
}

// maxDocBytes caps how much supporting text one record may contribute to a
// narrative prompt.
const maxDocBytes = 16 << 10

// FetchSupportingText reads the source document for a record and returns
// its text, truncated to a prompt-sized budget.  Any failure returns an
// empty string with the error; callers degrade to a narrative without
// supporting context.
func (c *Client) FetchSupportingText(ctx context.Context, docKey string) (string, error) {
	if docKey == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	obj, err := c.api.GetObject(ctx, c.bucket, docKey)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeServiceUnavailable, "source document fetch failed").
			WithDetail("key=" + docKey)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDocBytes))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeServiceUnavailable, "source document read failed").
			WithDetail("key=" + docKey)
	}
	return strings.TrimSpace(string(data)), nil
}

// Ping reports whether the bucket is reachable, for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio ping failed")
	}
	if !exists {
		return errors.New(errors.ErrCodeServiceUnavailable, "minio bucket missing").
			WithDetail("bucket=" + c.bucket)
	}
	return nil
}
