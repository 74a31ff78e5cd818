package photos

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioConfig points at an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL prefixes returned references; defaults to the endpoint.
	PublicURL string
}

// Minio stores photos as objects in a bucket.
type Minio struct {
	client    *minio.Client
	bucket    string
	publicURL string
	log       zerolog.Logger

	ensureMu sync.Mutex
	ensured  bool
}

// NewMinio creates the client. The bucket is created on first upload.
func NewMinio(cfg MinioConfig, log zerolog.Logger) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &Minio{client: client, bucket: cfg.Bucket, publicURL: public, log: log}, nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	m.ensureMu.Lock()
	defer m.ensureMu.Unlock()
	if m.ensured {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket: %w", err)
		}
		m.log.Info().Str("bucket", m.bucket).Msg("created photo bucket")
	}
	m.ensured = true
	return nil
}

// Upload puts data as a new object and returns its URL.
func (m *Minio) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	name := ObjectName(filename)
	info, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		return "", fmt.Errorf("put photo: %w", err)
	}
	m.log.Debug().Str("bucket", m.bucket).Str("object", name).Str("etag", info.ETag).Msg("photo uploaded")
	return m.publicURL + "/" + m.bucket + "/" + name, nil
}
