package ai

import "context"

// Embedder generates vector embeddings for text and images.
// Implementations must be thread-safe for concurrent use and must return
// unit-length vectors so cosine distance reduces to 1 - dot product.
type Embedder interface {
	// EmbedText generates a text-space embedding for a single string.
	// Returns core.ErrEmbeddingUnavailable for empty or oversized input
	// and for backend failures.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates text-space embeddings for multiple strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedImage generates an image-space embedding for encoded image bytes.
	// Returns core.ErrEmbeddingUnavailable for empty, oversized or
	// undecodable payloads.
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)

	// EmbedImageQuery embeds text into the image space using the image
	// model's text encoder, for text-to-image retrieval.
	EmbedImageQuery(ctx context.Context, text string) ([]float32, error)
}

// Synthesizer turns retrieved context into natural-language answers.
// Implementations must be thread-safe for concurrent use.
type Synthesizer interface {
	// Synthesize answers query using only contextText.
	// Returns core.ErrUnableToAnswer if the model produced no usable answer.
	Synthesize(ctx context.Context, query, contextText string) (string, error)

	// Summarize produces a short summary of a single article.
	Summarize(ctx context.Context, title, body string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the embedding service.
	Embedder() Embedder

	// Synthesizer returns the answer synthesis service.
	Synthesizer() Synthesizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
