package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFileStorage implements the Storage interface for local filesystem
type LocalFileStorage struct{}

func NewLocalFileStorage() *LocalFileStorage {
	return &LocalFileStorage{}
}

// GetReader returns a reader for the specified file
func (s *LocalFileStorage) GetReader(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// GetWriter returns a writer for the specified file, creating its directory
func (s *LocalFileStorage) GetWriter(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return os.Create(path)
}

// FileExists checks if a file exists
func (s *LocalFileStorage) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *LocalFileStorage) Close() error {
	return nil
}
