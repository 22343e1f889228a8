package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/jaki95/trak2rek/config"
)

// Storage reads and writes library files.
type Storage interface {
	GetReader(path string) (io.ReadCloser, error)

	// GetWriter returns a writer whose Close commits the file.
	GetWriter(path string) (io.WriteCloser, error)

	FileExists(path string) bool

	Close() error
}

// New returns the storage selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFileStorage(), nil
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		s, err := NewGCSStorage(ctx, cfg.Bucket, cfg.ObjectPrefix, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
