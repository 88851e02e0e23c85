package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// S3Config describes an S3 bucket. Endpoint is optional and switches the
// client to path-style addressing for S3-compatible stores.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// S3Uploader puts avatars into an S3 bucket using the SDK's managed uploader.
type S3Uploader struct {
	cfg S3Config

	once sync.Once
	sess *session.Session
	err  error
}

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	return &S3Uploader{cfg: cfg}, nil
}

func (u *S3Uploader) session() (*session.Session, error) {
	u.once.Do(func() {
		awsCfg := &aws.Config{Region: aws.String(u.cfg.Region)}
		if ep := strings.TrimSpace(u.cfg.Endpoint); ep != "" {
			awsCfg.Endpoint = aws.String(ep)
			awsCfg.S3ForcePathStyle = aws.Bool(true)
		}
		u.sess, u.err = session.NewSession(awsCfg)
		if u.err != nil {
			u.err = fmt.Errorf("failed to create session: %w", u.err)
		}
	})
	return u.sess, u.err
}

func (u *S3Uploader) UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error {
	sess, err := u.session()
	if err != nil {
		return err
	}
	key := Key(u.cfg.Prefix, file)
	_, err = s3manager.NewUploader(sess).UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file.Data),
		ContentType: aws.String(file.MIMEType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
