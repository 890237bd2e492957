package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API — подмножество клиента S3, используемое хранилищем.
// *s3.Client удовлетворяет интерфейсу; в тестах подставляется фейк.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config — параметры S3-хранилища.
type S3Config struct {
	// Bucket — имя бакета
	Bucket string
	// Region — регион AWS (для построения публичного URL)
	Region string
	// Endpoint — нестандартный endpoint (MinIO, LocalStack, Supabase)
	Endpoint string
	// PublicBaseURL — базовый публичный URL объектов (без завершающего '/')
	PublicBaseURL string
}

// S3Store — Store поверх S3.
type S3Store struct {
	client S3API
	cfg    S3Config
	logger *slog.Logger
}

// NewS3Store создаёт хранилище.
func NewS3Store(client S3API, cfg S3Config, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "s3")),
	}
}

// Put записывает объект. При NoOverwrite используется условная запись
// (If-None-Match: *), конфликт возвращается как ErrAlreadyExists.
func (s *S3Store) Put(ctx context.Context, path string, data []byte, opts PutOptions) (string, error) {
	if path == "" {
		return "", fmt.Errorf("путь объекта не может быть пустым")
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.NoOverwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if apiErrorCode(err) == "PreconditionFailed" {
			return "", fmt.Errorf("%s: %w", path, ErrAlreadyExists)
		}
		return "", fmt.Errorf("ошибка записи объекта %s: %w", path, err)
	}

	s.logger.Debug("Объект записан",
		slog.String("path", path),
		slog.Int("size", len(data)),
	)
	return s.PublicURL(path), nil
}

// Delete удаляет объект. NoSuchKey и NotFound считаются успехом.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return nil
	}
	switch apiErrorCode(err) {
	case "NoSuchKey", "NotFound":
		return nil
	}
	return fmt.Errorf("ошибка удаления объекта %s: %w", path, err)
}

// Ping проверяет доступность бакета через HeadBucket.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("бакет %s недоступен: %w", s.cfg.Bucket, err)
	}
	return nil
}

// PublicURL строит публичный URL объекта.
// Приоритет: PublicBaseURL → Endpoint (path-style) → виртуальный хост AWS.
func (s *S3Store) PublicURL(path string) string {
	escaped := escapePath(path)
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + escaped
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
	}
}

// escapePath экранирует каждый сегмент пути, сохраняя '/'.
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// apiErrorCode извлекает код ошибки S3 API ("" если это не ошибка API).
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
