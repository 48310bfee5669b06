// Package storage keeps song audio and cover images on local disk or in an
// S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that are empty or escape the root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// Storage is a flat key/object store.
type Storage interface {
	// Save writes the object under key, replacing any previous one.
	Save(ctx context.Context, key string, r io.Reader, contentType string) error

	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, key string) error

	// URL is the public address of the object.
	URL(key string) string

	// SignedURL is a temporary address for private objects.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Config struct {
	Type      string // local, s3, cloudflare_r2
	BasePath  string
	BaseURL   string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg)
	case "s3", "cloudflare_r2":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewKey builds a unique key under prefix that keeps the file extension.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

// cleanKey normalises a key and rejects anything outside the store.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
