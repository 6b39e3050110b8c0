package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers path-style requests for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		f.puts = append(f.puts, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(server.URL),
		Region:       "us-east-1",
		Credentials:  aws.AnonymousCredentials{},
		UsePathStyle: true,
	})
	return NewS3StoreWithClient(client, "newsrag", "images")
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	store := newTestS3Store(t, fake)

	ref, err := store.Put(context.Background(), "abc.png", []byte("data"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "abc.png", ref)
	assert.Equal(t, []string{"/newsrag/images/abc.png"}, fake.puts)
}

func TestS3Store_GetAndExists(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"/newsrag/images/abc.png": "payload"}}
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	data, err := store.Get(ctx, "abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	exists, err := store.Exists(ctx, "abc.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "other.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, "other.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
