package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopops/portal/internal/config"
	"shopops/portal/internal/logger"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectTooLarge is returned by GetObject when the object exceeds the read limit.
var ErrObjectTooLarge = errors.New("object exceeds size limit")

const presignExpiration = 15 * time.Minute

// IS3Storage defines the object storage operations used for task documents.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, taskID, filename, contentType string) (url string, key string, err error)
	GetObject(ctx context.Context, key string, maxBytes int64) (data []byte, contentType string, err error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type s3Storage struct {
	bucket        string
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates an S3 client from static credentials in cfg.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.Background(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		bucket:        cfg.AwsS3Bucket,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with underscores.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "document"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}

// DocumentKey is the object key for a document uploaded against a task.
func DocumentKey(taskID, filename string) string {
	return fmt.Sprintf("%s%s_%s", DocumentPrefix(taskID), uuid.NewString(), SanitizeFilename(filename))
}

// DocumentPrefix is the key prefix shared by every document of a task.
func DocumentPrefix(taskID string) string {
	return "documents/" + taskID + "/"
}

// GeneratePresignedPutURL returns a short-lived upload URL and the key it writes to.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, taskID, filename, contentType string) (string, string, error) {
	objectKey := DocumentKey(taskID, filename)

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	logger.Debug("Generated presigned upload URL", zap.String("key", objectKey))
	return presignedReq.URL, objectKey, nil
}

// GetObject downloads key, refusing to read more than maxBytes.
func (s *s3Storage) GetObject(ctx context.Context, key string, maxBytes int64) ([]byte, string, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && maxBytes > 0 && *out.ContentLength > maxBytes {
		return nil, "", ErrObjectTooLarge
	}

	reader := io.Reader(out.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(out.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", ErrObjectTooLarge
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *s3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
