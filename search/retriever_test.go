package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/newsrag/ai/mock"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
	"github.com/poiesic/newsrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVectorStore returns canned neighbors per modality.
type fakeVectorStore struct {
	neighbors map[core.Modality][]core.Neighbor
	queryErr  error
	queries   []core.Modality
}

var _ storage.VectorStore = (*fakeVectorStore)(nil)

func (f *fakeVectorStore) Upsert(context.Context, ...*core.EmbeddingRecord) error { return nil }

func (f *fakeVectorStore) Query(_ context.Context, _ []float32, m core.Modality, k int) ([]core.Neighbor, error) {
	f.queries = append(f.queries, m)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	n := f.neighbors[m]
	if len(n) > k {
		n = n[:k]
	}
	return n, nil
}

func (f *fakeVectorStore) Count(_ context.Context, m core.Modality) (int, error) {
	return len(f.neighbors[m]), nil
}

func (f *fakeVectorStore) Stats(context.Context) (*storage.Stats, error) {
	return &storage.Stats{}, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func textNeighbor(source string, distance float32, published time.Time) core.Neighbor {
	return core.Neighbor{
		Record: core.NewEmbeddingRecord(source, core.ModalityText, []float32{1}, core.RecordMetadata{
			ArticleURL: source,
			Title:      "Title " + source,
			URL:        source,
			Snippet:    "Snippet " + source,
			Published:  published,
		}),
		Distance: distance,
	}
}

func newTestRetriever(t *testing.T, store storage.VectorStore) (*Retriever, *mock.MockEmbedder) {
	t.Helper()
	provider := mock.NewMockProvider()
	r, err := NewRetriever(store, provider)
	require.NoError(t, err)
	return r, provider.GetMockEmbedder()
}

func sources(results []*core.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.SourceID
	}
	return out
}

func TestRetrieve_ThresholdAndOrder(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {
			textNeighbor("A", 0.18, time.Time{}),
			textNeighbor("C", 0.29, time.Time{}),
			textNeighbor("B", 0.35, time.Time{}),
		},
	}}
	r, _ := newTestRetriever(t, store)

	results, err := r.Retrieve(context.Background(), "what happened to GPUs?", 5, 0.7)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, sources(results))
	assert.InDelta(t, 0.82, results[0].Score, 1e-5)
	assert.InDelta(t, 0.71, results[1].Score, 1e-5)
}

func TestRetrieve_EmptyStore(t *testing.T) {
	store := &fakeVectorStore{}
	r, embedder := newTestRetriever(t, store)

	results, err := r.Retrieve(context.Background(), "anything", 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, embedder.CallCount(), "empty modalities are not embedded")
	assert.Empty(t, store.queries)
}

func TestRetrieve_ThresholdMonotonic(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {
			textNeighbor("A", 0.1, time.Time{}),
			textNeighbor("B", 0.4, time.Time{}),
			textNeighbor("C", 0.6, time.Time{}),
			textNeighbor("D", 0.9, time.Time{}),
		},
	}}
	r, _ := newTestRetriever(t, store)

	var previous []string
	for _, threshold := range []float32{0.9, 0.5, 0.3, 0.0} {
		results, err := r.Retrieve(context.Background(), "q", 10, threshold)
		require.NoError(t, err)
		got := sources(results)
		assert.Subset(t, got, previous, "lowering the threshold to %v dropped results", threshold)
		for _, res := range results {
			assert.GreaterOrEqual(t, res.Score, threshold)
		}
		previous = got
	}
	assert.Len(t, previous, 4)
}

func TestRetrieve_ThresholdIsInclusive(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {
			textNeighbor("edge", 0.3, time.Time{}),
			textNeighbor("quarter", 0.25, time.Time{}),
			textNeighbor("far", 0.31, time.Time{}),
		},
	}}
	r, _ := newTestRetriever(t, store)

	results, err := r.Retrieve(context.Background(), "q", 10, 0.7)
	require.NoError(t, err)
	assert.Equal(t, []string{"quarter", "edge"}, sources(results))
	assert.Equal(t, float32(0.7), results[1].Score)

	results, err = r.Retrieve(context.Background(), "q", 10, 0.75)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "quarter", results[0].Record.SourceID)
	assert.Equal(t, float32(0.75), results[0].Score)
}

func TestRetrieve_TieBreaks(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {
			textNeighbor("undated", 0.2, time.Time{}),
			textNeighbor("z-old", 0.2, older),
			textNeighbor("a-old", 0.2, older),
			textNeighbor("new", 0.2, newer),
		},
	}}
	r, _ := newTestRetriever(t, store)

	for range 3 {
		results, err := r.Retrieve(context.Background(), "q", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "a-old", "z-old", "undated"}, sources(results))
	}
}

func TestRetrieve_MergesModalities(t *testing.T) {
	image := core.Neighbor{
		Record: core.NewEmbeddingRecord(core.ImageIdentity("A", "A.png"), core.ModalityImage, []float32{1},
			core.RecordMetadata{ArticleURL: "A", URL: "A", ImageURL: "A.png"}),
		Distance: 0.05,
	}
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText:  {textNeighbor("A", 0.2, time.Time{}), textNeighbor("B", 0.3, time.Time{})},
		core.ModalityImage: {image},
	}}
	r, embedder := newTestRetriever(t, store)

	imageQueries := 0
	embedder.EmbedImageQueryFunc = func(_ context.Context, _ string) ([]float32, error) {
		imageQueries++
		return []float32{1}, nil
	}

	results, err := r.Retrieve(context.Background(), "chart", 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ModalityImage, results[0].Modality())
	assert.Equal(t, "A", results[1].Record.SourceID)
	assert.Equal(t, 1, imageQueries)
}

func TestRetrieve_ModalityFilter(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {textNeighbor("A", 0.2, time.Time{})},
		core.ModalityImage: {{
			Record:   core.NewEmbeddingRecord("A#image:x", core.ModalityImage, []float32{1}, core.RecordMetadata{}),
			Distance: 0.1,
		}},
	}}
	r, _ := newTestRetriever(t, store)

	results, err := r.RetrieveQuery(context.Background(), core.Query{Text: "q", Modality: core.ModalityText, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, sources(results))
	assert.Equal(t, []core.Modality{core.ModalityText}, store.queries)
}

func TestRetrieveGrouped(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {textNeighbor("A", 0.2, time.Time{}), textNeighbor("B", 0.3, time.Time{})},
		core.ModalityImage: {{
			Record:   core.NewEmbeddingRecord("A#image:x", core.ModalityImage, []float32{1}, core.RecordMetadata{}),
			Distance: 0.6,
		}},
	}}
	r, _ := newTestRetriever(t, store)

	groups, err := r.RetrieveGrouped(context.Background(), core.Query{Text: "q", Limit: 1, Threshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, sources(groups[core.ModalityText]))
	assert.Equal(t, []string{"A#image:x"}, sources(groups[core.ModalityImage]))
}

func TestRetrieve_StoreFailure(t *testing.T) {
	store := &fakeVectorStore{
		neighbors: map[core.Modality][]core.Neighbor{core.ModalityText: {textNeighbor("A", 0.2, time.Time{})}},
		queryErr:  errors.New("disk on fire"),
	}
	r, _ := newTestRetriever(t, store)

	_, err := r.Retrieve(context.Background(), "q", 5, 0.3)
	assert.ErrorIs(t, err, core.ErrVectorStoreUnavailable)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {textNeighbor("A", 0.2, time.Time{})},
	}}
	r, embedder := newTestRetriever(t, store)
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("%w: backend down", core.ErrEmbeddingUnavailable)
	}

	_, err := r.Retrieve(context.Background(), "q", 5, 0.3)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestRetrieve_EmptyQueryAndZeroLimit(t *testing.T) {
	r, _ := newTestRetriever(t, &fakeVectorStore{})

	_, err := r.Retrieve(context.Background(), "  ", 5, 0.3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	results, err := r.Retrieve(context.Background(), "q", 0, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_BadgerStore(t *testing.T) {
	vectors, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	provider := mock.NewMockProvider()
	embedder := provider.GetMockEmbedder()
	ctx := context.Background()

	docs := map[string]string{
		"https://example.com/gpus":   "GPU prices fell sharply",
		"https://example.com/robots": "Robots learn to fold laundry",
	}
	for url, text := range docs {
		vector, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)
		rec := core.NewEmbeddingRecord(url, core.ModalityText, vector, core.RecordMetadata{URL: url, Title: text, Snippet: text})
		require.NoError(t, vectors.Upsert(ctx, rec))
	}

	r, err := NewRetriever(vectors, provider)
	require.NoError(t, err)

	results, err := r.Retrieve(ctx, "GPU prices fell sharply", 1, 0.99)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/gpus", results[0].Record.SourceID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, float32(1), Similarity(0))
	assert.Equal(t, float32(0), Similarity(1.5))
	assert.Equal(t, float32(1), Similarity(-0.2))
	assert.InDelta(t, 0.75, Similarity(0.25), 1e-6)
}

type recordingMonitor struct {
	noopMonitor
	dropped  []string
	finished int
}

func (m *recordingMonitor) BelowThreshold(record *core.EmbeddingRecord, _ float32) {
	m.dropped = append(m.dropped, record.SourceID)
}

func (m *recordingMonitor) Finish(results []*core.RankedResult) {
	m.finished = len(results)
}

func TestRetrieveWithMonitor(t *testing.T) {
	store := &fakeVectorStore{neighbors: map[core.Modality][]core.Neighbor{
		core.ModalityText: {textNeighbor("A", 0.1, time.Time{}), textNeighbor("B", 0.8, time.Time{})},
	}}
	r, _ := newTestRetriever(t, store)
	monitor := &recordingMonitor{}

	_, err := r.RetrieveWithMonitor(context.Background(), core.Query{Text: "q", Limit: 5, Threshold: 0.5}, monitor)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, monitor.dropped)
	assert.Equal(t, 1, monitor.finished)
}

func TestNewRetriever_RequiredDeps(t *testing.T) {
	_, err := NewRetriever(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewRetriever(&fakeVectorStore{}, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}
