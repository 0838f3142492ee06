package attachments

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const presignExpiry = 15 * time.Minute

// Store issues presigned upload/download URLs for message attachments.
// The message row only ever carries the object's public URL, original
// filename, and mime type.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewStore connects to the object storage endpoint and ensures the bucket.
func NewStore(endpoint, user, password, bucket, publicURL string, logger *zap.Logger) (*Store, error) {
	raw := endpoint
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	secure := u.Scheme == "https"

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(user, password, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	if publicURL == "" {
		publicURL = fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, bucket)
	}

	s := &Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/"), logger: logger}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	logger.Info("attachment storage ready", zap.String("endpoint", u.Host), zap.String("bucket", bucket))
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// PresignUpload returns a short-lived PUT URL for a fresh object plus the
// stable public URL the message row should reference.
func (s *Store) PresignUpload(ctx context.Context, filename string) (uploadURL, objectURL string, err error) {
	object := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	signed, err := s.client.PresignedPutObject(ctx, s.bucket, object, presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign upload: %w", err)
	}
	return signed.String(), s.publicURL + "/" + object, nil
}

// PresignDownload returns a short-lived GET URL for an existing object.
func (s *Store) PresignDownload(ctx context.Context, object string) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, object, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return signed.String(), nil
}
