// Package storage uploads rendered documents to an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/document/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MinioStorage struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
	log       *zap.Logger
}

func NewMinio(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.Storage, error) {
	sc := cfg.Storage
	if strings.TrimSpace(sc.Endpoint) == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	client, err := minio.New(sc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(sc.AccessKey, sc.SecretKey, ""),
		Secure: sc.UseSSL,
		Region: sc.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinioStorage{
		client:    client,
		bucket:    sc.Bucket,
		region:    sc.Region,
		publicURL: publicBase(sc),
		log:       log.Named("document.storage"),
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				// Storage outages must not block the chat endpoint.
				if err := s.ensureBucket(ctx); err != nil {
					s.log.Warn("bucket check failed", zap.String("bucket", s.bucket), zap.Error(err))
				}
				return nil
			},
		})
	}
	return s, nil
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return err
	}
	s.log.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

func (s *MinioStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", domain.ErrUploadFailed)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return ObjectURL(s.publicURL, s.bucket, key), nil
}

func publicBase(sc config.StorageConfig) string {
	if sc.PublicURL != "" {
		return sc.PublicURL
	}
	scheme := "http"
	if sc.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(sc.Endpoint, "/")
}

// ObjectURL builds the path-style public URL of an object.
func ObjectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}
