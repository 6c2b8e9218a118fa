package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// MinIO stores raw uploads and parsed text in two buckets. Originals are
// keyed by raw-file MD5 so duplicate uploads collapse to one object; parsed
// text is keyed by resume content ID.
type MinIO struct {
	client           *minio.Client
	originalsBucket  string
	parsedTextBucket string
}

// NewMinIO connects and ensures both buckets exist.
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	m := &MinIO{
		client:           client,
		originalsBucket:  cfg.OriginalsBucket,
		parsedTextBucket: cfg.ParsedTextBucket,
	}

	for _, bucket := range []string{m.originalsBucket, m.parsedTextBucket} {
		if err := m.ensureBucket(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO connection established")
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context, bucket, location string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	err = m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	logger.Info().Str("bucket", bucket).Msg("created MinIO bucket")
	return nil
}

// OriginalObjectKey builds the object key for a raw upload.
func OriginalObjectKey(fileMD5, fileKind string) string {
	kind := strings.TrimPrefix(strings.ToLower(fileKind), ".")
	if kind == "" {
		kind = "bin"
	}
	return fmt.Sprintf("%s.%s", fileMD5, kind)
}

// ParsedObjectKey builds the object key for extracted plain text.
func ParsedObjectKey(resumeID string) string {
	return resumeID + ".txt"
}

// UploadOriginal stores a raw resume file and returns its object key.
func (m *MinIO) UploadOriginal(ctx context.Context, fileMD5, fileKind string, data []byte, contentType string) (string, error) {
	objectKey := OriginalObjectKey(fileMD5, fileKind)
	_, err := m.client.PutObject(ctx, m.originalsBucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload original %s: %w", objectKey, err)
	}
	return objectKey, nil
}

// DownloadOriginal fetches a raw resume file by its object key.
func (m *MinIO) DownloadOriginal(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.originalsBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get original %s: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read original %s: %w", objectKey, err)
	}
	return data, nil
}

// UploadParsedText stores the extracted text for a resume and returns its
// object key.
func (m *MinIO) UploadParsedText(ctx context.Context, resumeID, text string) (string, error) {
	objectKey := ParsedObjectKey(resumeID)
	_, err := m.client.PutObject(ctx, m.parsedTextBucket, objectKey,
		strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("upload parsed text %s: %w", objectKey, err)
	}
	return objectKey, nil
}

// GetParsedText fetches the extracted text for a resume.
func (m *MinIO) GetParsedText(ctx context.Context, resumeID string) (string, error) {
	objectKey := ParsedObjectKey(resumeID)
	obj, err := m.client.GetObject(ctx, m.parsedTextBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get parsed text %s: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read parsed text %s: %w", objectKey, err)
	}
	return string(data), nil
}
