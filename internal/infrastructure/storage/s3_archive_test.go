package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eyc/invoicing/internal/infrastructure/config"
)

// fakeS3 answers the handful of path-style S3 calls the archive makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
	case r.Method == http.MethodHead:
		if _, ok := f.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestArchive(t *testing.T, fake *fakeS3, bucket string) *S3Archive {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	archive, err := NewS3Archive(&config.StorageConfig{
		Endpoint:     srv.URL,
		Bucket:       bucket,
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return archive
}

func TestNewS3Archive_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Archive(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("bare host endpoint", func(t *testing.T) {
		archive, err := NewS3Archive(&config.StorageConfig{
			Endpoint: "minio:9000", Bucket: "exports", AccessKey: "k", SecretKey: "s",
		})
		require.NoError(t, err)
		assert.Equal(t, "exports", archive.Bucket())
	})
}

func TestS3Archive_Upload(t *testing.T) {
	fake := newFakeS3("eyc-exports")
	archive := newTestArchive(t, fake, "eyc-exports")
	ctx := context.Background()
	body := []byte("Invoice #,Member Name\r\n2000,Alice\r\n")

	require.NoError(t, archive.Upload(ctx, "exports/20260101T000000Z/invoices.csv", body, "text/csv"))

	assert.Equal(t, body, fake.objects["eyc-exports/exports/20260101T000000Z/invoices.csv"])
	assert.Equal(t, "text/csv", fake.types["eyc-exports/exports/20260101T000000Z/invoices.csv"])

	exists, err := archive.ObjectExists(ctx, "exports/20260101T000000Z/invoices.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestS3Archive_UploadRefusesOverwrite(t *testing.T) {
	fake := newFakeS3("eyc-exports")
	fake.objects["eyc-exports/exports/k/invoices.csv"] = []byte("old")
	archive := newTestArchive(t, fake, "eyc-exports")

	err := archive.Upload(context.Background(), "exports/k/invoices.csv", []byte("new"), "text/csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectExists))
	assert.Equal(t, []byte("old"), fake.objects["eyc-exports/exports/k/invoices.csv"])
}

func TestS3Archive_ObjectExists(t *testing.T) {
	archive := newTestArchive(t, newFakeS3("eyc-exports"), "eyc-exports")

	exists, err := archive.ObjectExists(context.Background(), "exports/missing.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = archive.ObjectExists(context.Background(), "")
	assert.Error(t, err)
}

func TestS3Archive_EnsureBucket(t *testing.T) {
	fake := newFakeS3()
	archive := newTestArchive(t, fake, "eyc-exports")

	require.NoError(t, archive.EnsureBucket(context.Background()))
	assert.True(t, fake.buckets["eyc-exports"])

	// Second call finds the bucket
	require.NoError(t, archive.EnsureBucket(context.Background()))
}
