package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// fakeS3 — in-memory реализация S3API.
type fakeS3 struct {
	objects   map[string][]byte
	lastPut   *s3.PutObjectInput
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := f.objects[key]; ok {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
		}
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestS3Store_Put(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, S3Config{Bucket: "student-uploads", Region: "eu-west-1"}, testLogger())

	url, err := store.Put(context.Background(), "uploads/file_1_abc.PDF", []byte("pdf"), PutOptions{
		ContentType:  "application/pdf",
		CacheControl: "max-age=3600",
		NoOverwrite:  true,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if want := "https://student-uploads.s3.eu-west-1.amazonaws.com/uploads/file_1_abc.PDF"; url != want {
		t.Errorf("URL = %q, ожидалось %q", url, want)
	}
	if aws.ToString(fake.lastPut.CacheControl) != "max-age=3600" {
		t.Errorf("CacheControl = %q", aws.ToString(fake.lastPut.CacheControl))
	}
	if aws.ToString(fake.lastPut.ContentType) != "application/pdf" {
		t.Errorf("ContentType = %q", aws.ToString(fake.lastPut.ContentType))
	}
}

func TestS3Store_PutNoOverwrite(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, S3Config{Bucket: "b"}, testLogger())
	ctx := context.Background()

	if _, err := store.Put(ctx, "uploads/a.txt", []byte("1"), PutOptions{NoOverwrite: true}); err != nil {
		t.Fatalf("первая запись: %v", err)
	}
	_, err := store.Put(ctx, "uploads/a.txt", []byte("2"), PutOptions{NoOverwrite: true})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("ожидалась ErrAlreadyExists, получено %v", err)
	}
	if string(fake.objects["uploads/a.txt"]) != "1" {
		t.Errorf("объект перезаписан")
	}
}

func TestS3Store_DeleteNotFoundIsSuccess(t *testing.T) {
	fake := newFakeS3()
	fake.deleteErr = &smithy.GenericAPIError{Code: "NoSuchKey"}
	store := NewS3Store(fake, S3Config{Bucket: "b"}, testLogger())
	if err := store.Delete(context.Background(), "uploads/missing.txt"); err != nil {
		t.Errorf("NoSuchKey должен считаться успехом: %v", err)
	}

	fake.deleteErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	if err := store.Delete(context.Background(), "uploads/x.txt"); err == nil {
		t.Error("ожидалась ошибка AccessDenied")
	}
}

func TestS3Store_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{
			"публичный базовый URL",
			S3Config{Bucket: "student-uploads", PublicBaseURL: "https://x.supabase.co/storage/v1/object/public/student-uploads/"},
			"https://x.supabase.co/storage/v1/object/public/student-uploads/uploads/my%20notes.txt",
		},
		{
			"endpoint path-style",
			S3Config{Bucket: "student-uploads", Endpoint: "http://localhost:4566"},
			"http://localhost:4566/student-uploads/uploads/my%20notes.txt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewS3Store(newFakeS3(), tt.cfg, testLogger())
			if got := s.PublicURL("uploads/my notes.txt"); got != tt.want {
				t.Errorf("PublicURL = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}
