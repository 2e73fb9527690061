package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// Client persists page artifacts. For the local client the bucket is a directory.
type Client interface {
	SaveBytes(ctx context.Context, bucketName string, objectName string, data []byte) error
}

type gcsClient struct {
	storageClient *storage.Client
}

func New(storageClient *storage.Client) Client {
	return &gcsClient{storageClient: storageClient}
}

func (s *gcsClient) SaveBytes(ctx context.Context, bucketName string, objectName string, data []byte) error {
	writer := s.storageClient.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType(objectName)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

type localClient struct{}

// NewLocal writes objects below the bucket directory, creating subdirectories as needed.
func NewLocal() Client {
	return localClient{}
}

func (localClient) SaveBytes(_ context.Context, bucketName string, objectName string, data []byte) error {
	path := filepath.Join(bucketName, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", objectName, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", objectName, err)
	}
	return nil
}

func contentType(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
