package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rekav/img2ascii/config"
)

var tracer = otel.Tracer("github.com/rekav/img2ascii/sink")

// MinIO uploads artifacts to an S3-compatible bucket.
type MinIO struct {
	client   *minio.Client
	endpoint string
	bucket   string
	prefix   string
	useSSL   bool
}

// NewMinIO creates a MinIO sink. No request is made until the first
// Deliver.
func NewMinIO(cfg config.MinIO) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio sink needs endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIO{
		client:   client,
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		useSSL:   cfg.UseSSL,
	}, nil
}

// Deliver uploads data as <prefix>/<base of name> and returns its URL.
func (m *MinIO) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	key, err := m.objectKey(name)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "minio_upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("minio.key", key),
		attribute.Int("minio.size", len(data)),
	)

	if err := m.ensureBucket(ctx); err != nil {
		span.RecordError(err)
		return "", err
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return m.objectURL(key), nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "minio_ensure_bucket")
	defer span.End()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinIO) objectKey(name string) (string, error) {
	base, err := baseName(name)
	if err != nil {
		return "", err
	}
	if m.prefix == "" {
		return base, nil
	}
	return path.Join(m.prefix, base), nil
}

func (m *MinIO) objectURL(key string) string {
	protocol := "http"
	if m.useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, m.endpoint, m.bucket, key)
}
