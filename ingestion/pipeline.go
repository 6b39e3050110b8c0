package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/assets"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

const (
	defaultBatchSize        = 16
	defaultMaxFailureRatio  = 0.5
	defaultMinFailureSample = 10

	// SnippetLength caps the body excerpt stored with each record.
	SnippetLength = 1000
)

// Result summarizes one build-db run.
type Result struct {
	Total         int
	Ingested      int
	Resumed       int
	Skipped       int
	Failed        int
	TextRecords   int
	ImageRecords  int
	ImageFailures int
	Duration      time.Duration
}

// Pipeline embeds scraped articles and stores their records.
type Pipeline struct {
	articles         storage.ArticleStore
	vectors          storage.VectorStore
	ledger           storage.Ledger
	assets           assets.Store
	embedder         ai.Embedder
	pool             *ants.Pool
	batchSize        int
	maxFailureRatio  float64
	minFailureSample int
	progressWriter   io.Writer
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many articles are embedded before their records are stored.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithFailurePolicy aborts a run once more than ratio of at least minSample
// embedding attempts have failed.
func WithFailurePolicy(ratio float64, minSample int) Option {
	return func(p *Pipeline) error {
		if ratio <= 0 || ratio > 1 {
			return fmt.Errorf("%w: failure ratio %v outside (0, 1]", core.ErrConfiguration, ratio)
		}
		p.maxFailureRatio = ratio
		p.minFailureSample = max(minSample, 0)
		return nil
	}
}

// WithAssetStore enables image embedding from downloaded payloads.
func WithAssetStore(store assets.Store) Option {
	return func(p *Pipeline) error {
		p.assets = store
		return nil
	}
}

// WithProgress writes a progress line to w while a run is in flight.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progressWriter = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new build-db pipeline.
func NewPipeline(
	articles storage.ArticleStore,
	vectors storage.VectorStore,
	ledger storage.Ledger,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if articles == nil {
		return nil, ErrArticleStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		articles:         articles,
		vectors:          vectors,
		ledger:           ledger,
		embedder:         provider.Embedder(),
		batchSize:        defaultBatchSize,
		maxFailureRatio:  defaultMaxFailureRatio,
		minFailureSample: defaultMinFailureSample,
		logger:           slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}
	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Run ingests every article in the article store.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	articles, err := p.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	return p.Ingest(ctx, articles...)
}

// Ingest embeds and stores the given articles. Articles already in the
// ledger, and repeats of an identity within the call, are skipped. A recorded
// article whose images are not all in the ledger is resumed: only the missing
// images are embedded.
func (p *Pipeline) Ingest(ctx context.Context, articles ...*core.Article) (*Result, error) {
	start := time.Now()
	result := &Result{Total: len(articles)}

	pending, err := p.pending(ctx, articles, result)
	if err != nil {
		return result, err
	}
	p.logger.Info("ingesting articles", "total", len(articles), "pending", len(pending), "skipped", result.Skipped)

	tracker := newProgress(p.progressWriter, len(pending), p.batchSize)
	defer tracker.finish()

	var attempts, failures int
	for offset := 0; offset < len(pending); offset += p.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch := pending[offset:min(offset+p.batchSize, len(pending))]
		outcomes, err := p.embedBatch(ctx, batch)
		if err != nil {
			return result, err
		}

		batchFailures, err := p.store(ctx, outcomes, result)
		if err != nil {
			return result, err
		}
		tracker.add(len(batch), batchFailures)

		for _, o := range outcomes {
			attempts += o.imageAttempts
			failures += o.imageFailures
			if !o.resume {
				attempts++
			}
			if o.textErr != nil {
				failures++
			}
		}
		if attempts >= p.minFailureSample && float64(failures) > p.maxFailureRatio*float64(attempts) {
			p.logger.Error("aborting ingestion", "failures", failures, "attempts", attempts, "max_ratio", p.maxFailureRatio)
			return result, fmt.Errorf("%w: %d of %d embeddings failed", core.ErrBatchAborted, failures, attempts)
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"ingested", result.Ingested,
		"resumed", result.Resumed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"text_records", result.TextRecords,
		"image_records", result.ImageRecords,
		"image_failures", result.ImageFailures,
		"duration", result.Duration)
	return result, nil
}

// task is one article queued for embedding. A resumed task already has its
// text record and only needs its missing images.
type task struct {
	article *core.Article
	resume  bool
}

// pending drops articles the ledger has fully seen and duplicates within the input.
func (p *Pipeline) pending(ctx context.Context, articles []*core.Article, result *Result) ([]*task, error) {
	var pending []*task
	queued := make(map[string]bool)
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := article.Identity()
		if queued[id] {
			result.Skipped++
			continue
		}
		seen, err := p.ledger.Seen(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("checking ledger: %w", err)
		}
		if seen {
			missing, err := p.missingImages(ctx, article)
			if err != nil {
				return nil, err
			}
			if len(missing) == 0 {
				result.Skipped++
				continue
			}
		}
		queued[id] = true
		pending = append(pending, &task{article: article, resume: seen})
	}
	return pending, nil
}

// missingImages lists the article's downloaded images that the ledger has not seen.
func (p *Pipeline) missingImages(ctx context.Context, article *core.Article) ([]*core.ImageAsset, error) {
	if p.assets == nil {
		return nil, nil
	}
	images, err := p.articles.ImagesFor(ctx, article.URL)
	if err != nil {
		return nil, fmt.Errorf("listing images for %s: %w", article.URL, err)
	}
	var missing []*core.ImageAsset
	for _, img := range images {
		if img.PayloadRef == "" {
			continue
		}
		seen, err := p.ledger.Seen(ctx, img.Identity())
		if err != nil {
			return nil, fmt.Errorf("checking ledger: %w", err)
		}
		if !seen {
			missing = append(missing, img)
		}
	}
	return missing, nil
}

// outcome is the embedding result for one article.
type outcome struct {
	article       *core.Article
	resume        bool
	records       []*core.EmbeddingRecord
	textErr       error
	err           error
	imageAttempts int
	imageFailures int
}

// embedBatch embeds a batch in the worker pool. Outcomes keep input order.
func (p *Pipeline) embedBatch(ctx context.Context, batch []*task) ([]*outcome, error) {
	outcomes := make([]*outcome, len(batch))
	var wg sync.WaitGroup
	for i, t := range batch {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = p.embedArticle(ctx, t)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting embedding task: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (p *Pipeline) embedArticle(ctx context.Context, t *task) *outcome {
	article := t.article
	o := &outcome{article: article, resume: t.resume}
	if err := ctx.Err(); err != nil {
		o.textErr = err
		return o
	}

	meta := core.RecordMetadata{
		ArticleURL: article.URL,
		Title:      article.Title,
		URL:        article.URL,
		Snippet:    snippet(article.Body),
		Published:  article.Published,
	}

	if !t.resume {
		vector, err := p.embedder.EmbedText(ctx, article.Document())
		if err != nil {
			o.textErr = err
			return o
		}
		o.records = append(o.records, core.NewEmbeddingRecord(article.Identity(), core.ModalityText, vector, meta))
	}

	// Listing errors are fatal so the article stays unrecorded.
	images, err := p.missingImages(ctx, article)
	if err != nil {
		o.err = err
		return o
	}
	for _, img := range images {
		o.imageAttempts++
		record, err := p.embedImage(ctx, img, meta)
		if err != nil {
			o.imageFailures++
			p.logger.Warn("embedding image", "image", img.URL, "article", article.URL, "error", err)
			continue
		}
		o.records = append(o.records, record)
	}
	return o
}

func (p *Pipeline) embedImage(ctx context.Context, img *core.ImageAsset, meta core.RecordMetadata) (*core.EmbeddingRecord, error) {
	data, err := p.assets.Get(ctx, img.PayloadRef)
	if err != nil {
		return nil, fmt.Errorf("%w: loading payload: %w", core.ErrEmbeddingUnavailable, err)
	}
	vector, err := p.embedder.EmbedImage(ctx, data)
	if err != nil {
		return nil, err
	}
	meta.ImageURL = img.URL
	return core.NewEmbeddingRecord(img.Identity(), core.ModalityImage, vector, meta), nil
}

// store upserts each embedded article's records and then records the
// article and its stored images in the ledger, in input order. It returns the
// number of articles that failed to embed. Store, ledger and image listing
// errors are returned as is.
func (p *Pipeline) store(ctx context.Context, outcomes []*outcome, result *Result) (int, error) {
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			return failed, o.err
		}
		result.ImageFailures += o.imageFailures
		if o.textErr != nil {
			if errors.Is(o.textErr, context.Canceled) || errors.Is(o.textErr, context.DeadlineExceeded) {
				return failed, o.textErr
			}
			failed++
			result.Failed++
			p.logger.Warn("embedding article", "article", o.article.URL, "error", o.textErr)
			continue
		}

		if len(o.records) > 0 {
			if err := p.vectors.Upsert(ctx, o.records...); err != nil {
				return failed, fmt.Errorf("storing records for %s: %w", o.article.URL, err)
			}
		}
		identities := make([]string, 0, len(o.records))
		for _, r := range o.records {
			identities = append(identities, r.SourceID)
		}
		if o.resume && len(identities) == 0 {
			continue
		}
		if err := p.ledger.Record(ctx, identities...); err != nil {
			return failed, fmt.Errorf("recording %s: %w", o.article.URL, err)
		}

		if o.resume {
			result.Resumed++
		} else {
			result.Ingested++
		}
		for _, r := range o.records {
			if r.Modality == core.ModalityImage {
				result.ImageRecords++
			} else {
				result.TextRecords++
			}
		}
	}
	return failed, nil
}

// snippet returns the first SnippetLength runes of body.
func snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= SnippetLength {
		return body
	}
	return string(runes[:SnippetLength])
}
