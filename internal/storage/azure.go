package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

var _ ObjectStore = (*AzureStore)(nil)

// AzureStore keeps snapshots as block blobs in a single container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureStore authenticates with a connection string when given, otherwise
// with the account shared key.
func NewAzureStore(opts Options) (*AzureStore, error) {
	container := strings.TrimSpace(opts.Container)
	if container == "" {
		return nil, errors.New("azure storage container is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	if cs := strings.TrimSpace(opts.AzureConnectionString); cs != "" {
		client, err = azblob.NewClientFromConnectionString(cs, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client from connection string: %w", err)
		}
	} else {
		account := strings.TrimSpace(opts.AzureAccountName)
		key := strings.TrimSpace(opts.AzureAccountKey)
		if account == "" || key == "" {
			return nil, errors.New("azure storage account name and key are required")
		}
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
	}

	return &AzureStore{client: client, container: container, prefix: opts.Prefix}, nil
}

func (s *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	name := joinKey(s.prefix, key)
	if _, err := s.client.UploadStream(ctx, s.container, name, bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("upload blob %q: %w", name, err)
	}
	return nil
}

func (s *AzureStore) List(ctx context.Context, prefix string) ([]Object, error) {
	full := joinKey(s.prefix, prefix)
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &full})

	var out []Object
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs in %q: %w", s.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			obj := Object{Key: trimPrefix(s.prefix, *item.Name)}
			if item.Properties != nil {
				if item.Properties.LastModified != nil {
					obj.LastModified = *item.Properties.LastModified
				}
				if item.Properties.ContentLength != nil {
					obj.Size = *item.Properties.ContentLength
				}
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *AzureStore) Delete(ctx context.Context, key string) error {
	name := joinKey(s.prefix, key)
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		return fmt.Errorf("delete blob %q: %w", name, err)
	}
	return nil
}
