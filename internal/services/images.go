package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ImageStore saves uploaded product images and returns the URL clients use to
// fetch them.
type ImageStore interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
}

// objectName keeps the original extension and replaces the rest with a uuid.
func objectName(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

type MinIOImageStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

func NewMinIOImageStore(client *minio.Client, bucket, endpoint string, secure bool) *MinIOImageStore {
	return &MinIOImageStore{client: client, bucket: bucket, endpoint: endpoint, secure: secure}
}

func (s *MinIOImageStore) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := objectName(file.Filename)
	_, err = s.client.PutObject(ctx, s.bucket, name, f, file.Size,
		minio.PutObjectOptions{ContentType: file.Header.Get("Content-Type")})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, name), nil
}

// LocalImageStore writes images under dir; the router serves dir at urlPrefix.
type LocalImageStore struct {
	dir       string
	urlPrefix string
}

func NewLocalImageStore(dir, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalImageStore{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *LocalImageStore) Save(_ context.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := objectName(file.Filename)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return path.Join(s.urlPrefix, name), nil
}
