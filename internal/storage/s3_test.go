package storage

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3ListResult struct {
	XMLName     xml.Name    `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	KeyCount    int         `xml:"KeyCount"`
	MaxKeys     int         `xml:"MaxKeys"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []s3Content `xml:"Contents"`
}

type s3Content struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

// newFakeS3 serves the path-style subset of the S3 API the store uses for a
// single bucket.
func newFakeS3(t *testing.T, bucketName string, bucket *memBucket) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 ") {
			http.Error(w, "unsigned request", http.StatusForbidden)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/")
		name, key, _ := strings.Cut(path, "/")
		if name != bucketName {
			http.Error(w, "<Error><Code>NoSuchBucket</Code></Error>", http.StatusNotFound)
			return
		}

		switch {
		case r.Method == http.MethodPut && key != "":
			data, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			bucket.put(key, data)
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
			prefix := r.URL.Query().Get("prefix")
			res := s3ListResult{Name: bucketName, Prefix: prefix, MaxKeys: 1000}
			for _, k := range bucket.list(prefix) {
				res.Contents = append(res.Contents, s3Content{
					Key:          k,
					LastModified: remoteModTime.Format("2006-01-02T15:04:05.000Z"),
					Size:         bucket.size(k),
					StorageClass: "STANDARD",
				})
			}
			res.KeyCount = len(res.Contents)
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, xml.Header)
			_ = xml.NewEncoder(w).Encode(res)
		case r.Method == http.MethodDelete && key != "":
			bucket.remove(key)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unexpected "+r.Method+" "+r.URL.String(), http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Store_PutListDelete(t *testing.T) {
	isolateAWSConfig(t)
	bucket := seededRemoteBucket()
	srv := newFakeS3(t, "snapshots", bucket)

	store, err := NewS3Store(context.Background(), Options{
		Container:         "snapshots",
		Prefix:            "reports",
		S3Region:          "eu-west-1",
		S3Endpoint:        srv.URL,
		S3AccessKeyID:     "AKIDEXAMPLE",
		S3SecretAccessKey: "secret",
		S3UsePathStyle:    true,
	})
	require.NoError(t, err)

	exerciseRemoteStore(t, store, bucket)
}

func TestS3Store_PutSurfacesServiceError(t *testing.T) {
	isolateAWSConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), Options{
		Container:         "snapshots",
		S3Region:          "eu-west-1",
		S3Endpoint:        srv.URL,
		S3AccessKeyID:     "AKIDEXAMPLE",
		S3SecretAccessKey: "secret",
		S3UsePathStyle:    true,
	})
	require.NoError(t, err)

	err = store.Put(context.Background(), "2026-10-19-app-credentials.csv", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `put object "2026-10-19-app-credentials.csv"`)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Options{Container: " "})
	assert.EqualError(t, err, "s3 bucket is required")
}
