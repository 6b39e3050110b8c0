package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Text goes to the text model. Images are sent to the image model as
// base64 data URIs, which CLIP-serving endpoints accept as input strings.
type Embedder struct {
	text          embeddings.Embedder
	image         embeddings.Embedder
	timeout       time.Duration
	maxTextChars  int
	maxImageBytes int
	logger        *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	text, err := newLangchainEmbedder(config, config.TextModel, true)
	if err != nil {
		return nil, err
	}

	// Image model inputs are passed through untouched.
	image, err := newLangchainEmbedder(config, config.ImageModel, false)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		text:          text,
		image:         image,
		timeout:       config.Timeout,
		maxTextChars:  config.MaxTextChars,
		maxImageBytes: config.MaxImageBytes,
		logger:        slog.Default().With("component", "openai-embedder"),
	}, nil
}

func newLangchainEmbedder(config *ai.Config, model string, stripNewLines bool) (embeddings.Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token()),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	return embeddings.NewEmbedder(client, embeddings.WithStripNewLines(stripNewLines))
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if err := e.checkText(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	e.logger.Debug("generating text embeddings", "count", len(texts))
	return e.embed(ctx, e.text, texts)
}

// EmbedImage generates a vector embedding for encoded image bytes.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", core.ErrEmbeddingUnavailable)
	}
	if len(data) > e.maxImageBytes {
		return nil, fmt.Errorf("%w: image is %d bytes, limit %d", core.ErrEmbeddingUnavailable, len(data), e.maxImageBytes)
	}
	contentType, err := ImageContentType(data)
	if err != nil {
		return nil, err
	}

	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	e.logger.Debug("generating image embedding", "bytes", len(data), "type", contentType)
	vectors, err := e.embed(ctx, e.image, []string{uri})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedImageQuery embeds query text into the image space.
func (e *Embedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkText(text); err != nil {
		return nil, err
	}
	vectors, err := e.embed(ctx, e.image, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, embedder embeddings.Embedder, inputs []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(inputs), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbeddingUnavailable, len(inputs), len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for input %d", core.ErrEmbeddingUnavailable, i)
		}
		vectors[i] = ai.NormalizeVector(v)
	}
	return vectors, nil
}

func (e *Embedder) checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty text", core.ErrEmbeddingUnavailable)
	}
	if n := utf8.RuneCountInString(text); n > e.maxTextChars {
		return fmt.Errorf("%w: text is %d characters, limit %d", core.ErrEmbeddingUnavailable, n, e.maxTextChars)
	}
	return nil
}

// ImageContentType sniffs the payload and returns its image MIME type.
// Non-image payloads return core.ErrEmbeddingUnavailable.
func ImageContentType(data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: payload is %s, not an image", core.ErrEmbeddingUnavailable, contentType)
	}
	return contentType, nil
}
