// Package storage provides the durable object stores report snapshots are
// uploaded to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Object describes a stored blob as returned by List.
type Object struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ObjectStore is the minimal durable-storage surface the report store needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

const (
	BackendAzure = "azure"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendFile  = "file"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Options carries the settings for every backend; only the fields of the
// selected backend are read.
type Options struct {
	Backend   string
	Container string
	Prefix    string

	AzureAccountName      string
	AzureAccountKey       string
	AzureConnectionString string

	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	GCSCredentialsFile string

	Dir string
}

// Open builds the configured backend. Failing here is a pre-run error.
func Open(ctx context.Context, opts Options) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendAzure:
		return NewAzureStore(opts)
	case BackendS3:
		return NewS3Store(ctx, opts)
	case BackendGCS:
		return NewGCSStore(ctx, opts)
	case BackendFile, "":
		return NewFileStore(opts.Dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func trimPrefix(prefix, key string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}
