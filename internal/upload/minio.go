package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// MinioProvider implements the Provider interface for MinIO/S3 storage.
type MinioProvider struct {
	client *minio.Client
	bucket string
}

// NewMinioProvider creates a new MinioProvider.
func NewMinioProvider() *MinioProvider {
	return &MinioProvider{}
}

// Name returns the provider name.
func (m *MinioProvider) Name() string {
	return "minio"
}

// Configure creates the MinIO client and checks that the bucket exists.
func (m *MinioProvider) Configure(ctx context.Context, s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}

	endpoint, secure, err := parseEndpoint(s.Endpoint, s.Secure)
	if err != nil {
		return err
	}

	region := s.Region
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return fmt.Errorf("minio: failed to create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return fmt.Errorf("minio: failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio: bucket %s does not exist", s.Bucket)
	}

	m.client = client
	m.bucket = s.Bucket
	return nil
}

// Upload streams r to the configured bucket.
func (m *MinioProvider) Upload(ctx context.Context, r io.Reader, size int64, remotePath string) error {
	if m.client == nil {
		return errors.New("minio: provider not configured")
	}

	_, err := m.client.PutObject(ctx, m.bucket, remotePath, r, size, minio.PutObjectOptions{
		ContentType: contentType(remotePath),
	})
	if err != nil {
		return fmt.Errorf("minio: failed to upload to %s: %w", remotePath, err)
	}
	return nil
}

func (s Settings) validate() error {
	switch {
	case s.Endpoint == "":
		return errors.New("minio: endpoint is required")
	case s.AccessKey == "":
		return errors.New("minio: access_key is required")
	case s.SecretKey == "":
		return errors.New("minio: secret_key is required")
	case s.Bucket == "":
		return errors.New("minio: bucket is required")
	}
	return nil
}

// parseEndpoint strips an http:// or https:// scheme. The scheme, when
// present, overrides secure.
func parseEndpoint(raw string, secure bool) (string, bool, error) {
	endpoint := raw
	switch {
	case strings.HasPrefix(raw, "https://"):
		endpoint, secure = strings.TrimPrefix(raw, "https://"), true
	case strings.HasPrefix(raw, "http://"):
		endpoint, secure = strings.TrimPrefix(raw, "http://"), false
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		return "", false, fmt.Errorf("minio: invalid endpoint %q", raw)
	}
	return endpoint, secure, nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".jtl"), strings.HasSuffix(name, ".xml"):
		return "application/xml"
	case strings.HasSuffix(name, ".log"):
		return "text/plain"
	case strings.HasSuffix(name, ".html"):
		return "text/html"
	}
	return "application/octet-stream"
}
