package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
	"github.com/johnquangdev/meeting-copilot/pkg/config"
)

const presignExpiry = 15 * time.Minute

// MinIOAudioStore keeps meeting recordings in an S3-compatible bucket
type MinIOAudioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

var _ repositories.AudioStore = (*MinIOAudioStore)(nil)

// NewMinIOAudioStore connects to MinIO and makes sure the bucket exists.
// The bucket check is retried until cfg.Startup.ConnectMaxElapsed.
func NewMinIOAudioStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*MinIOAudioStore, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &MinIOAudioStore{
		client: client,
		bucket: cfg.Storage.BucketName,
		logger: logger,
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.Startup.ConnectMaxElapsed
	notify := func(err error, wait time.Duration) {
		logger.Warn("object storage not ready, retrying",
			zap.Error(err), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(func() error {
		return store.ensureBucket(ctx)
	}, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	logger.Info("object storage ready", zap.String("bucket", store.bucket))
	return store, nil
}

// ensureBucket creates the bucket when it does not exist yet. Recordings stay
// private; the bucket gets no public policy.
func (m *MinIOAudioStore) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// SaveAudio uploads the recording and returns its s3:// path
func (m *MinIOAudioStore) SaveAudio(ctx context.Context, meetingID int64, r io.Reader, size int64, contentType string) (string, error) {
	objectName := audioObjectName(meetingID, contentType)
	_, err := m.client.PutObject(ctx, m.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload recording: %w", err)
	}

	path := fmt.Sprintf("s3://%s/%s", m.bucket, objectName)
	m.logger.Info("recording uploaded", zap.Int64("meeting_id", meetingID), zap.String("path", path))
	return path, nil
}

// ResolveAudio returns a presigned download link for an s3:// path in this bucket
func (m *MinIOAudioStore) ResolveAudio(ctx context.Context, path string) (repositories.AudioLocation, error) {
	objectName, ok := strings.CutPrefix(path, "s3://"+m.bucket+"/")
	if !ok || objectName == "" {
		return repositories.AudioLocation{}, entities.ErrAudioNotFound
	}

	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, presignExpiry, nil)
	if err != nil {
		return repositories.AudioLocation{}, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return repositories.AudioLocation{URL: url.String()}, nil
}
