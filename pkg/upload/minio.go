package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	minioCreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// MinioConfig describes a MinIO (or other S3-compatible) bucket.
type MinioConfig struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Timeout   time.Duration
}

// MinioUploader puts avatars into a MinIO bucket.
type MinioUploader struct {
	cfg    MinioConfig
	client *minio.Client
}

func NewMinioUploader(cfg MinioConfig) (*MinioUploader, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("object storage credentials are not configured")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object storage bucket is not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = "minio:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  minioCreds.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioUploader{cfg: cfg, client: client}, nil
}

func (u *MinioUploader) UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	contentType := file.MIMEType
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	key := Key(u.cfg.Prefix, file)
	_, err := u.client.PutObject(ctx, u.cfg.Bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
