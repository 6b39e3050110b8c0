package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

// Retriever ranks stored records against a natural-language query.
// It is read-only and safe for concurrent use.
type Retriever struct {
	vectors  storage.VectorStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(vectors storage.VectorStore, provider ai.AIProvider, opts ...Option) (*Retriever, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		vectors:  vectors,
		embedder: provider.Embedder(),
		logger:   slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Retrieve returns at most k results across all modalities whose similarity
// is at least threshold. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, threshold float32) ([]*core.RankedResult, error) {
	return r.RetrieveQuery(ctx, core.Query{Text: query, Limit: k, Threshold: threshold})
}

// RetrieveQuery runs a retrieval described by q. A non-zero q.Modality
// restricts the search to that modality.
func (r *Retriever) RetrieveQuery(ctx context.Context, q core.Query) ([]*core.RankedResult, error) {
	return r.RetrieveWithMonitor(ctx, q, nil)
}

// RetrieveWithMonitor is RetrieveQuery with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, q core.Query, monitor RetrievalMonitor) ([]*core.RankedResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(q)

	groups, err := r.candidates(ctx, q, monitor)
	if err != nil {
		return nil, err
	}

	var merged []*core.RankedResult
	for _, m := range core.Modalities {
		merged = append(merged, groups[m]...)
	}
	merged = rank(merged, q.Limit)

	monitor.Finish(merged)
	return merged, nil
}

// RetrieveGrouped ranks each modality separately, for deployments where
// text and image similarities are not comparable. Each group holds at most
// q.Limit results.
func (r *Retriever) RetrieveGrouped(ctx context.Context, q core.Query) (map[core.Modality][]*core.RankedResult, error) {
	groups, err := r.candidates(ctx, q, &noopMonitor{})
	if err != nil {
		return nil, err
	}
	for m, results := range groups {
		groups[m] = rank(results, q.Limit)
	}
	return groups, nil
}

// candidates embeds the query for every populated modality in scope and
// returns the neighbors that clear the threshold.
func (r *Retriever) candidates(ctx context.Context, q core.Query, monitor RetrievalMonitor) (map[core.Modality][]*core.RankedResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	groups := make(map[core.Modality][]*core.RankedResult)
	if q.Limit <= 0 {
		return groups, nil
	}
	if q.Modality != 0 {
		if err := core.ValidateModality(q.Modality); err != nil {
			return nil, err
		}
	}

	for _, m := range core.Modalities {
		if q.Modality != 0 && q.Modality != m {
			continue
		}

		count, err := r.vectors.Count(ctx, m)
		if err != nil {
			return nil, storeError(err)
		}
		if count == 0 {
			continue
		}

		vector, err := r.embedQuery(ctx, m, q.Text)
		if err != nil {
			r.logger.Error("error embedding query", "modality", m, "err", err)
			return nil, err
		}
		monitor.AfterEmbedding(m, len(vector))

		neighbors, err := r.vectors.Query(ctx, vector, m, q.Limit)
		if err != nil {
			r.logger.Error("error querying vector store", "modality", m, "err", err)
			return nil, storeError(err)
		}
		monitor.AfterNeighbors(m, neighbors)

		for _, n := range neighbors {
			score := Similarity(n.Distance)
			if score < q.Threshold {
				monitor.BelowThreshold(n.Record, score)
				continue
			}
			groups[m] = append(groups[m], &core.RankedResult{Record: n.Record, Score: score})
		}
	}
	return groups, nil
}

func (r *Retriever) embedQuery(ctx context.Context, m core.Modality, text string) ([]float32, error) {
	if m == core.ModalityImage {
		return r.embedder.EmbedImageQuery(ctx, text)
	}
	return r.embedder.EmbedText(ctx, text)
}

// Similarity converts a cosine distance into a score in [0, 1].
func Similarity(distance float32) float32 {
	return min(max(1-distance, 0), 1)
}

// rank sorts results by score descending, then publication date descending
// (undated ranks as oldest), then source identity ascending, and keeps the
// first k.
func rank(results []*core.RankedResult, k int) []*core.RankedResult {
	slices.SortStableFunc(results, compareResults)
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func compareResults(a, b *core.RankedResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Record.Metadata.Published.Compare(a.Record.Metadata.Published); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.SourceID, b.Record.SourceID)
}

func storeError(err error) error {
	if errors.Is(err, core.ErrVectorStoreUnavailable) || errors.Is(err, core.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrVectorStoreUnavailable, err)
}
