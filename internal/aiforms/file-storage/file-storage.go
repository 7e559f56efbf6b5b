// Пакет предоставляет интерфейс и реализации файлового хранилища зашифрованных вложений ответов: локальное хранилище и Minio. Объекты адресуются ключом вида submissions/<form>/<submission>/<id>.
package filestorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	UploadTries = 3
)

var ErrInvalidKey = errors.New("invalid object key")

type Metadata struct {
	FormId       string
	SubmissionId string
	FieldId      string
}

func (m Metadata) GetMap() map[string]string {
	meta := make(map[string]string)
	if m.FormId != "" {
		meta["formId"] = m.FormId
	}
	if m.SubmissionId != "" {
		meta["submissionId"] = m.SubmissionId
	}
	if m.FieldId != "" {
		meta["fieldId"] = m.FieldId
	}
	return meta
}

// MetadataFromKey разбирает ключ submissions/<form>/<submission>/<id>
func MetadataFromKey(key string) *Metadata {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "submissions" {
		return nil
	}
	return &Metadata{FormId: parts[1], SubmissionId: parts[2]}
}

type FileStorage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exist(ctx context.Context, key string) (bool, error)
}

type LocalStorage struct {
	rootDir string
}

func NewLocalStorage(rootPath string) (FileStorage, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{rootPath}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.rootDir, clean), nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (s *LocalStorage) Load(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) Exist(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	retryDelay time.Duration
}

func (s *MinioStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	putOptions := minio.PutObjectOptions{ContentType: contentType}
	if meta := MetadataFromKey(key); meta != nil {
		putOptions.UserTags = meta.GetMap()
	}

	var err error
	for i := range UploadTries {
		_, err = s.client.PutObject(ctx,
			s.bucketName,
			key,
			bytes.NewReader(data),
			int64(len(data)),
			putOptions,
		)
		if err == nil {
			return nil
		}
		resp := minio.ToErrorResponse(err)
		slog.Error("Upload file to minio", "key", key, "try", i+1, "code", resp.StatusCode, "msg", resp.Message)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return err
}

func (s *MinioStorage) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
}

func (s *MinioStorage) Exist(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func NewMinioStorage(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool, bucketName string) (FileStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, err
	}

	if !exists {
		// Create bucket if not exist
		if err := client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client: client, bucketName: bucketName, retryDelay: 2 * time.Second}, nil
}
