package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements the Storage interface for Google Cloud Storage.
// Paths are object names relative to the configured prefix.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
	ctx          context.Context
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string) (*GCSStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: objectPrefix,
		ctx:          ctx,
	}, nil
}

func (s *GCSStorage) objectName(path string) string {
	return objectName(s.objectPrefix, path)
}

func objectName(prefix, path string) string {
	name := strings.TrimPrefix(path, "/")
	if prefix != "" {
		name = strings.TrimSuffix(prefix, "/") + "/" + name
	}
	return name
}

// GetReader returns a reader for an object
func (s *GCSStorage) GetReader(path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(path)).NewReader(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, s.objectName(path), err)
	}
	return r, nil
}

// GetWriter returns a writer for an object. The upload completes on Close.
func (s *GCSStorage) GetWriter(path string) (io.WriteCloser, error) {
	w := s.client.Bucket(s.bucket).Object(s.objectName(path)).NewWriter(s.ctx)
	w.ContentType = "application/xml"
	return w, nil
}

// FileExists checks if an object exists
func (s *GCSStorage) FileExists(path string) bool {
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(path)).Attrs(s.ctx)
	return err == nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
