// Package mock provides test doubles for the ai package interfaces.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	provider.GetMockEmbedder().EmbedImageFunc = func(ctx context.Context, data []byte) ([]float32, error) {
//	    return nil, core.ErrEmbeddingUnavailable
//	}
//
//	// Check call counts
//	count := provider.GetMockSynthesizer().CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: deterministic unit vectors derived from an FNV hash of the
//     input, TextDimensions wide for text and ImageDimensions for images
//   - MockSynthesizer: echoes the query and records the context it was given
//   - MockProvider: aggregates the two
package mock
