package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
)

// AvatarStore keeps user avatar images in a MinIO bucket, keyed by user ID.
type AvatarStore struct {
	client *minio.Client
	bucket string
}

// NewAvatarStore creates the MinIO client and ensures the bucket exists.
func NewAvatarStore(cfg *config.MinIOConfig) (*AvatarStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &AvatarStore{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// tolerate a bucket that already exists
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func avatarKey(userID string) string {
	return "avatar/" + userID
}

// Put stores the avatar image for the user and returns the object key.
func (s *AvatarStore) Put(ctx context.Context, userID string, reader io.Reader, size int64, contentType string) (string, error) {
	key := avatarKey(userID)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return key, nil
}

// PresignedURL returns a presigned GET URL for the user's avatar.
func (s *AvatarStore) PresignedURL(ctx context.Context, userID string, expires time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, avatarKey(userID), expires, make(url.Values))
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// Delete removes the user's avatar object. Missing objects are not an error.
func (s *AvatarStore) Delete(ctx context.Context, userID string) error {
	return s.client.RemoveObject(ctx, s.bucket, avatarKey(userID), minio.RemoveObjectOptions{})
}
