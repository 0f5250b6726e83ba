package storage

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteModTime is the modification time every fake backend reports.
var remoteModTime = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

// memBucket is the object map behind the fake S3, Azure and GCS servers.
// Names include the configured key prefix, as the real services see them.
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBucket(names ...string) *memBucket {
	b := &memBucket{objects: make(map[string][]byte)}
	for _, name := range names {
		b.objects[name] = []byte("seed")
	}
	return b
}

func (b *memBucket) put(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = append([]byte(nil), data...)
}

func (b *memBucket) get(name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	return data, ok
}

func (b *memBucket) remove(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[name]
	delete(b.objects, name)
	return ok
}

func (b *memBucket) list(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (b *memBucket) size(name string) int {
	data, _ := b.get(name)
	return len(data)
}

// isolateAWSConfig keeps the developer's ~/.aws files and profile out of
// LoadDefaultConfig.
func isolateAWSConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
}

// seededRemoteBucket holds one older snapshot under the store prefix and one
// object outside it.
func seededRemoteBucket() *memBucket {
	return newMemBucket(
		"reports/2026-09-01-app-credentials.csv",
		"other/2026-10-01-app-credentials.csv",
	)
}

// exerciseRemoteStore drives Put, List and Delete through store against a
// bucket built by seededRemoteBucket, with the store prefix "reports".
func exerciseRemoteStore(t *testing.T, store ObjectStore, bucket *memBucket) {
	t.Helper()
	ctx := context.Background()
	payload := []byte("Name,Expiry Date,Type,Owner Name,Owner Email\nPayments,2026-11-01,Certificate,Alice,alice@example.com\n")

	require.NoError(t, store.Put(ctx, "2026-10-19-app-credentials.csv", payload))
	stored, ok := bucket.get("reports/2026-10-19-app-credentials.csv")
	require.True(t, ok, "object is written under the store prefix")
	assert.Contains(t, string(stored), string(payload))

	objs, err := store.List(ctx, "2026-10")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "2026-10-19-app-credentials.csv", objs[0].Key, "store prefix is stripped")
	assert.Equal(t, int64(bucket.size("reports/2026-10-19-app-credentials.csv")), objs[0].Size)
	assert.True(t, remoteModTime.Equal(objs[0].LastModified), "LastModified = %v", objs[0].LastModified)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	keys := make([]string, 0, len(all))
	for _, o := range all {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"2026-09-01-app-credentials.csv", "2026-10-19-app-credentials.csv"}, keys)

	require.NoError(t, store.Delete(ctx, "2026-09-01-app-credentials.csv"))
	_, ok = bucket.get("reports/2026-09-01-app-credentials.csv")
	assert.False(t, ok)
	_, ok = bucket.get("other/2026-10-01-app-credentials.csv")
	assert.True(t, ok, "objects outside the prefix are untouched")
}
