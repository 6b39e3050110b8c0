package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newEmbeddingServer answers every embedding request with [3, 4] per input
// and records the models and inputs it saw.
func newEmbeddingServer(t *testing.T, seen *[]embeddingRequest, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*seen = append(*seen, req)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{3, 4}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(host),
		ai.WithTextModel("text-model"),
		ai.WithImageModel("image-model"),
		ai.WithMaxTextChars(50),
		ai.WithMaxImageBytes(1024),
	)
}

func TestEmbedder_EmbedText(t *testing.T) {
	var seen []embeddingRequest
	var calls atomic.Int32
	server := newEmbeddingServer(t, &seen, &calls)
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	vec, err := embedder.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, vec, 1e-6)

	require.Len(t, seen, 1)
	assert.Equal(t, "text-model", seen[0].Model)
}

func TestEmbedder_EmbedImage(t *testing.T) {
	var seen []embeddingRequest
	var calls atomic.Int32
	server := newEmbeddingServer(t, &seen, &calls)
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	vec, err := embedder.EmbedImage(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	require.Len(t, seen, 1)
	assert.Equal(t, "image-model", seen[0].Model)
	require.Len(t, seen[0].Input, 1)
	assert.True(t, strings.HasPrefix(seen[0].Input[0], "data:image/png;base64,"))
}

func TestEmbedder_InvalidInput(t *testing.T) {
	var seen []embeddingRequest
	var calls atomic.Int32
	server := newEmbeddingServer(t, &seen, &calls)
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty text", func() error { _, err := embedder.EmbedText(ctx, "  "); return err }},
		{"oversized text", func() error { _, err := embedder.EmbedText(ctx, strings.Repeat("x", 51)); return err }},
		{"empty batch member", func() error { _, err := embedder.EmbedTexts(ctx, []string{"ok", ""}); return err }},
		{"empty image", func() error { _, err := embedder.EmbedImage(ctx, nil); return err }},
		{"oversized image", func() error { _, err := embedder.EmbedImage(ctx, make([]byte, 2048)); return err }},
		{"not an image", func() error { _, err := embedder.EmbedImage(ctx, []byte("<html></html>")); return err }},
		{"empty image query", func() error { _, err := embedder.EmbedImageQuery(ctx, ""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
		})
	}
	assert.Equal(t, int32(0), calls.Load(), "invalid input must not reach the backend")
}

func TestEmbedder_BackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestImageContentType(t *testing.T) {
	ct, err := ImageContentType(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = ImageContentType([]byte("plain text"))
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}
