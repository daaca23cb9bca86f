package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/noah-isme/sma-roster-api/pkg/config"
)

// ErrNotFound is returned when no artifact is stored under the key.
var ErrNotFound = errors.New("artifact not found")

// Store persists rendered artifacts under slash-separated keys.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

// New builds the Store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg config.ExportsConfig) (Store, error) {
	switch cfg.StorageDriver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.StorageDir)
	case config.StorageDriverS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown exports storage driver %q", cfg.StorageDriver)
	}
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty artifact key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return cleaned, nil
}
