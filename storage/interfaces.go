package storage

import (
	"context"

	"github.com/poiesic/newsrag/core"
)

// VectorStore persists embedding records and answers nearest-neighbor queries.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert stores records, replacing any record with the same
	// (source identity, modality). All records are written atomically.
	// Returns core.ErrDimensionMismatch if a vector's length differs from
	// the dimension already fixed for its modality.
	Upsert(ctx context.Context, records ...*core.EmbeddingRecord) error

	// Query returns at most k neighbors of vector within one modality,
	// ordered by ascending cosine distance, ties broken by source identity.
	// An empty modality index yields an empty result.
	Query(ctx context.Context, vector []float32, modality core.Modality, k int) ([]core.Neighbor, error)

	// Count returns the number of records stored for a modality.
	Count(ctx context.Context, modality core.Modality) (int, error)

	// Stats summarizes the store contents.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources held by the store.
	Close() error
}

// Ledger is the durable set of article and image identities that have been ingested.
// Implementations must be thread-safe.
type Ledger interface {
	// Seen reports whether an identity has been recorded.
	Seen(ctx context.Context, identity string) (bool, error)

	// Record adds identities to the ledger. Recording an identity twice is a no-op.
	Record(ctx context.Context, identities ...string) error

	// Count returns the number of recorded identities.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the ledger.
	Close() error
}

// ArticleStore holds scraped articles between the scrape and build-db jobs.
type ArticleStore interface {
	// SaveArticle stores an article and its images, replacing a previous
	// copy of the same article.
	SaveArticle(ctx context.Context, article *core.Article, images []*core.ImageAsset) error

	// HasArticle reports whether an article URL has been saved.
	HasArticle(ctx context.Context, url string) (bool, error)

	// ListArticles returns all saved articles ordered by URL.
	ListArticles(ctx context.Context) ([]*core.Article, error)

	// ImagesFor returns the stored images of an article in document order.
	ImagesFor(ctx context.Context, articleURL string) ([]*core.ImageAsset, error)

	// CountArticles returns the number of saved articles.
	CountArticles(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// Stats summarizes a vector store.
type Stats struct {
	Records    map[core.Modality]int
	Dimensions map[core.Modality]int
}

// Total returns the number of records across all modalities.
func (s *Stats) Total() int {
	total := 0
	for _, n := range s.Records {
		total += n
	}
	return total
}
