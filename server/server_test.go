package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/newsrag/ai/mock"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/storage"
	"github.com/poiesic/newsrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Upsert(context.Context, ...*core.EmbeddingRecord) error { return nil }
func (brokenStore) Query(context.Context, []float32, core.Modality, int) ([]core.Neighbor, error) {
	return nil, errors.New("connection reset")
}
func (brokenStore) Count(context.Context, core.Modality) (int, error) { return 1, nil }
func (brokenStore) Stats(context.Context) (*storage.Stats, error) {
	return nil, core.ErrVectorStoreUnavailable
}
func (brokenStore) Close() error { return nil }

func newTestServer(t *testing.T, vectors storage.VectorStore, opts ...Option) (*Server, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	retriever, err := search.NewRetriever(vectors, provider)
	require.NoError(t, err)
	answerer, err := search.NewAnswerer(retriever, provider.Synthesizer())
	require.NoError(t, err)
	srv, err := New(answerer, vectors, opts...)
	require.NoError(t, err)
	return srv, provider
}

func seededStore(t *testing.T, provider *mock.MockProvider) storage.VectorStore {
	t.Helper()
	vectors, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx := context.Background()
	vector, err := provider.Embedder().EmbedText(ctx, "chips are getting cheaper")
	require.NoError(t, err)
	rec := core.NewEmbeddingRecord("https://example.com/chips", core.ModalityText, vector, core.RecordMetadata{
		ArticleURL: "https://example.com/chips",
		URL:        "https://example.com/chips",
		Title:      "Chips",
		Snippet:    "chips are getting cheaper",
		Published:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, vectors.Upsert(ctx, rec))
	return vectors
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, brokenStore{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQuery_Answer(t *testing.T) {
	vectors := seededStore(t, mock.NewMockProvider())
	srv, _ := newTestServer(t, vectors)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/query", QueryRequest{Query: "chips are getting cheaper"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mock answer: chips are getting cheaper", resp.Answer)
	assert.False(t, resp.NoContext)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "text", resp.Results[0].Modality)
	assert.Equal(t, "Chips", resp.Results[0].Title)
	require.NotNil(t, resp.Results[0].Published)
	assert.Nil(t, resp.Groups)
}

func TestQuery_Grouped(t *testing.T) {
	vectors := seededStore(t, mock.NewMockProvider())
	srv, _ := newTestServer(t, vectors, WithGrouped(true))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/query", QueryRequest{Query: "chips are getting cheaper"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Groups["text"], 1)
}

func TestQuery_NoContext(t *testing.T) {
	vectors, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	srv, provider := newTestServer(t, vectors)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/query", QueryRequest{Query: "anything"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.NoContext)
	assert.Equal(t, search.NoContextMessage, resp.Answer)
	assert.Empty(t, resp.Results)
	assert.Zero(t, provider.GetMockSynthesizer().CallCount())
}

func TestQuery_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, brokenStore{})
	bad := float32(2)

	tests := []struct {
		name string
		body any
	}{
		{"missing query", map[string]string{}},
		{"bad threshold", QueryRequest{Query: "q", Threshold: &bad}},
		{"bad modality", QueryRequest{Query: "q", Modality: "audio"}},
		{"blank query", QueryRequest{Query: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestQuery_BackendUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, brokenStore{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/query", QueryRequest{Query: "q"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"retrieval backend unavailable"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	vectors := seededStore(t, mock.NewMockProvider())
	srv, _ := newTestServer(t, vectors)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":{"text":1,"image":0},"total":1}`, rec.Body.String())

	broken, _ := newTestServer(t, brokenStore{})
	rec = doJSON(t, broken.Handler(), http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	srv, _ := newTestServer(t, brokenStore{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNew_RequiredDeps(t *testing.T) {
	_, err := New(nil, brokenStore{})
	assert.ErrorIs(t, err, ErrAnswererRequired)
}
