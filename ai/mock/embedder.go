package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
)

const (
	// TextDimensions is the default text vector size.
	TextDimensions = 384
	// ImageDimensions is the default image vector size.
	ImageDimensions = 512
)

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedImageFunc is called by EmbedImage if set.
	EmbedImageFunc func(ctx context.Context, data []byte) ([]float32, error)

	// EmbedImageQueryFunc is called by EmbedImageQuery if set.
	EmbedImageQueryFunc func(ctx context.Context, text string) ([]float32, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockEmbedder().
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

func (m *MockEmbedder) count() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.count()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", core.ErrEmbeddingUnavailable)
	}
	return generateDeterministicVector([]byte(text), TextDimensions), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.count()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text %d", core.ErrEmbeddingUnavailable, i)
		}
		embeddings[i] = generateDeterministicVector([]byte(text), TextDimensions)
	}
	return embeddings, nil
}

// EmbedImage generates a deterministic embedding based on the payload hash.
func (m *MockEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	m.count()

	if m.EmbedImageFunc != nil {
		return m.EmbedImageFunc(ctx, data)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", core.ErrEmbeddingUnavailable)
	}
	return generateDeterministicVector(data, ImageDimensions), nil
}

// EmbedImageQuery generates a deterministic image-space embedding for text.
func (m *MockEmbedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	m.count()

	if m.EmbedImageQueryFunc != nil {
		return m.EmbedImageQueryFunc(ctx, text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", core.ErrEmbeddingUnavailable)
	}
	return generateDeterministicVector([]byte(text), ImageDimensions), nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
	m.EmbedImageFunc = nil
	m.EmbedImageQueryFunc = nil
}

// generateDeterministicVector creates a unit vector from the input bytes.
// It uses FNV hash to ensure the same input always produces the same vector.
func generateDeterministicVector(input []byte, dim int) []float32 {
	h := fnv.New32a()
	h.Write(input)
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return ai.NormalizeVector(vector)
}
