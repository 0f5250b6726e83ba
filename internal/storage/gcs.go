package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var _ ObjectStore = (*GCSStore)(nil)

type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore uses a service-account key file when configured and
// application default credentials otherwise.
func NewGCSStore(ctx context.Context, opts Options) (*GCSStore, error) {
	bucket := strings.TrimSpace(opts.Container)
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var clientOpts []option.ClientOption
	if path := strings.TrimSpace(opts.GCSCredentialsFile); path != "" {
		clientOpts = append(clientOpts, option.WithAuthCredentialsFile(option.ServiceAccount, path))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: opts.Prefix}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	name := joinKey(s.prefix, key)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q: %w", name, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: joinKey(s.prefix, prefix)})

	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects in %q: %w", s.bucket, err)
		}
		out = append(out, Object{
			Key:          trimPrefix(s.prefix, attrs.Name),
			LastModified: attrs.Updated,
			Size:         attrs.Size,
		})
	}
	return out, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	name := joinKey(s.prefix, key)
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q: %w", name, err)
	}
	return nil
}
