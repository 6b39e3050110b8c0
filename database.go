// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package newsrag wires the scrape, build-db and query jobs to the stores
// and model services named by a config.Config.
package newsrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/ai/openai"
	"github.com/poiesic/newsrag/assets"
	"github.com/poiesic/newsrag/config"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/scrape"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/server"
	"github.com/poiesic/newsrag/storage"
	"github.com/poiesic/newsrag/storage/badger"
	"github.com/poiesic/newsrag/storage/redis"
	"github.com/poiesic/newsrag/storage/sqlite"
)

type Database struct {
	cfg      *config.Config
	backend  *badger.Backend
	vectors  storage.VectorStore
	ledger   storage.Ledger
	articles storage.ArticleStore
	assets   assets.Store
	provider ai.AIProvider
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	assets   assets.Store
}

// WithAIProvider replaces the provider built from the models section.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithAssets replaces the asset store built from the assets section.
func WithAssets(store assets.Store) DatabaseOption {
	return func(o *databaseOptions) {
		o.assets = store
	}
}

// Stats summarizes everything the stores hold.
type Stats struct {
	Articles int
	// Ingested counts ledger identities: articles and their embedded images.
	Ingested int
	Vectors  *storage.Stats
}

// AIConfig translates the models section into provider settings.
func AIConfig(m config.Models) *ai.Config {
	completionHost := m.CompletionHost
	if completionHost == "" {
		completionHost = m.EmbeddingHost
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(m.EmbeddingHost),
		ai.WithCompletionHost(completionHost),
		ai.WithTextModel(m.TextModel),
		ai.WithImageModel(m.ImageModel),
		ai.WithCompletionModel(m.CompletionModel),
		ai.WithAPIKey(m.APIKey()),
		ai.WithTimeout(m.Timeout),
		ai.WithMaxTextChars(m.MaxTextChars),
		ai.WithMaxImageBytes(m.MaxImageBytes),
		ai.WithMaxTokens(m.MaxTokens),
		ai.WithTemperature(m.Temperature),
	)
}

// Open opens every store named by cfg. Close releases them.
func Open(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{
		cfg:    cfg,
		logger: slog.Default().With("component", "database"),
	}
	// Anything opened before a failure is closed again.
	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	backend, err := badger.OpenBackend(cfg.Database.Path, false)
	if err != nil {
		return nil, err
	}
	db.backend = backend

	vectors, err := badger.NewVectorStore(backend)
	if err != nil {
		return nil, err
	}
	db.vectors = vectors

	ledger, err := openLedger(ctx, cfg.Database, backend)
	if err != nil {
		return nil, err
	}
	db.ledger = ledger

	articles, err := sqlite.Open(cfg.Database.ArticlesPath)
	if err != nil {
		return nil, err
	}
	db.articles = articles

	db.assets = options.assets
	if db.assets == nil {
		store, err := openAssets(ctx, cfg.Assets)
		if err != nil {
			return nil, err
		}
		db.assets = store
	}

	db.provider = options.provider
	if db.provider == nil {
		provider, err := openai.NewProvider(AIConfig(cfg.Models))
		if err != nil {
			return nil, err
		}
		db.provider = provider
	}

	ok = true
	return db, nil
}

func openLedger(ctx context.Context, cfg config.Database, backend *badger.Backend) (storage.Ledger, error) {
	switch cfg.Ledger {
	case config.LedgerRedis:
		return redis.NewLedger(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
	case config.LedgerBadger, "":
		return badger.NewLedger(backend)
	default:
		return nil, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}
}

func openAssets(ctx context.Context, cfg config.Assets) (assets.Store, error) {
	switch cfg.Kind {
	case config.AssetsS3:
		store, err := assets.NewS3Store(ctx, assets.S3Config{
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			Prefix:       cfg.Prefix,
			UsePathStyle: cfg.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.AssetsLocal, "":
		store, err := assets.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown asset store %q", cfg.Kind)
	}
}

// Close releases the provider and stores. The badger backend goes last
// since the vector store and the default ledger share it.
func (db *Database) Close() error {
	var errs []error
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}
	if db.articles != nil {
		if err := db.articles.Close(); err != nil {
			db.logger.Error("error closing article store", "err", err)
			errs = append(errs, err)
		}
	}
	if db.ledger != nil {
		if err := db.ledger.Close(); err != nil {
			db.logger.Error("error closing ledger", "err", err)
			errs = append(errs, err)
		}
	}
	if db.vectors != nil {
		if err := db.vectors.Close(); err != nil {
			db.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) Config() *config.Config {
	return db.cfg
}

func (db *Database) VectorStore() storage.VectorStore {
	return db.vectors
}

func (db *Database) Ledger() storage.Ledger {
	return db.ledger
}

func (db *Database) ArticleStore() storage.ArticleStore {
	return db.articles
}

func (db *Database) Assets() assets.Store {
	return db.assets
}

// NewScraper builds the scrape job. A headless browser is attached when
// scraping.browser is set. Caller options are applied last.
func (db *Database) NewScraper(opts ...scrape.Option) (*scrape.Scraper, error) {
	sc := db.cfg.Scraping
	limiter := scrape.NewLimiter(sc.Delay)
	fetcher := scrape.NewFetcher(limiter,
		scrape.WithUserAgent(sc.UserAgent),
		scrape.WithRequestTimeout(sc.RequestTimeout),
		scrape.WithRetries(sc.MaxRetries, sc.RetryBaseDelay),
	)

	defaults := []scrape.Option{
		scrape.WithLimiter(limiter),
		scrape.WithAssetStore(db.assets),
	}
	if sc.Browser {
		defaults = append(defaults, scrape.WithSessionFactory(
			scrape.NewBrowser(sc.LoadMoreText, scrape.WithBrowserUserAgent(sc.UserAgent)),
		))
	}
	return scrape.NewScraper(sc, fetcher, db.ledger, db.articles, append(defaults, opts...)...)
}

// NewIngestionPipeline builds the build-db job. Caller options are applied last.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	ic := db.cfg.Ingestion
	defaults := []ingestion.Option{
		ingestion.WithPoolSize(ic.PoolSize),
		ingestion.WithBatchSize(ic.BatchSize),
		ingestion.WithFailurePolicy(ic.MaxFailureRatio, ic.MinFailureSample),
		ingestion.WithAssetStore(db.assets),
	}
	return ingestion.NewPipeline(db.articles, db.vectors, db.ledger, db.provider, append(defaults, opts...)...)
}

func (db *Database) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	return search.NewRetriever(db.vectors, db.provider, opts...)
}

// NewAnswerer builds an answerer with the retrieval section's defaults.
func (db *Database) NewAnswerer(opts ...search.AnswerOption) (*search.Answerer, error) {
	retriever, err := db.NewRetriever()
	if err != nil {
		return nil, err
	}
	rc := db.cfg.Retrieval
	defaults := []search.AnswerOption{
		search.WithResultCount(rc.ResultCount),
		search.WithThreshold(float32(rc.SimilarityThreshold)),
		search.WithContextResults(rc.ContextLimit()),
	}
	return search.NewAnswerer(retriever, db.provider.Synthesizer(), append(defaults, opts...)...)
}

// NewServer builds the HTTP query surface.
func (db *Database) NewServer(opts ...server.Option) (*server.Server, error) {
	answerer, err := db.NewAnswerer()
	if err != nil {
		return nil, err
	}
	defaults := []server.Option{server.WithGrouped(db.cfg.Retrieval.Grouped)}
	return server.New(answerer, db.vectors, append(defaults, opts...)...)
}

// Stats counts saved articles, ingested identities and stored records.
func (db *Database) Stats(ctx context.Context) (*Stats, error) {
	articles, err := db.articles.CountArticles(ctx)
	if err != nil {
		return nil, err
	}
	ingested, err := db.ledger.Count(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := db.vectors.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Articles: articles, Ingested: ingested, Vectors: vectors}, nil
}
