package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/newsrag/assets"
	"github.com/poiesic/newsrag/config"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

// Report summarizes one scrape run.
type Report struct {
	Discovered    int
	Saved         int
	Skipped       int
	Failed        int
	ParseFailures int
	FailedPages   int
	Images        int
	ImageFailures int
	Duration      time.Duration
}

// Scraper is the scrape job. It walks the configured categories and feeds,
// fetches every article not yet ingested, downloads its images and saves the
// result to the article store for build-db.
type Scraper struct {
	cfg       config.Scraping
	fetcher   PageFetcher
	extractor *Extractor
	feeds     *FeedLinks
	ledger    storage.Ledger
	articles  storage.ArticleStore
	assets    assets.Store
	sessions  SessionFactory
	limiter   *Limiter
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithSessionFactory enables load-more walks.
func WithSessionFactory(f SessionFactory) Option {
	return func(s *Scraper) {
		s.sessions = f
	}
}

// WithAssetStore enables image downloads.
func WithAssetStore(store assets.Store) Option {
	return func(s *Scraper) {
		s.assets = store
	}
}

// WithLimiter sets the limiter browser clicks wait on. It should be the
// limiter the fetcher uses.
func WithLimiter(l *Limiter) Option {
	return func(s *Scraper) {
		s.limiter = l
	}
}

// WithExtractor replaces the extractor built from the config selectors.
func WithExtractor(e *Extractor) Option {
	return func(s *Scraper) {
		s.extractor = e
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "scraper")
	}
}

func NewScraper(cfg config.Scraping, fetcher PageFetcher, ledger storage.Ledger, articles storage.ArticleStore, opts ...Option) (*Scraper, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if articles == nil {
		return nil, ErrArticleStoreRequired
	}

	s := &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		feeds:    NewFeedLinks(fetcher),
		ledger:   ledger,
		articles: articles,
		limiter:  NewLimiter(0),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = NewExtractor(
			WithTitleSelector(cfg.TitleSelector),
			WithContentSelector(cfg.ContentSelector),
			WithLoadMoreText(cfg.LoadMoreText),
		)
	}
	return s, nil
}

// discovered is an article link and the category it was found under.
type discovered struct {
	url      string
	category string
}

// Run performs one scrape. Per-page and per-article failures are logged and
// counted; only context cancellation and article store failures stop the run.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	links, err := s.discover(ctx, report)
	if err != nil {
		return report, err
	}
	report.Discovered = len(links)
	s.logger.Info("discovered articles", "count", len(links))

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		seen, err := s.ledger.Seen(ctx, link.url)
		if err != nil {
			return report, fmt.Errorf("checking ledger: %w", err)
		}
		if seen {
			report.Skipped++
			continue
		}
		stored, err := s.articles.HasArticle(ctx, link.url)
		if err != nil {
			return report, fmt.Errorf("checking article store: %w", err)
		}
		if stored {
			report.Skipped++
			continue
		}

		if err := s.scrapeArticle(ctx, link, report); err != nil {
			return report, err
		}
		if (i+1)%25 == 0 {
			s.logger.Info("scrape progress", "processed", i+1, "total", len(links), "saved", report.Saved)
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info("scrape complete",
		"discovered", report.Discovered,
		"saved", report.Saved,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"parse_failures", report.ParseFailures,
		"failed_pages", report.FailedPages,
		"images", report.Images,
		"duration", report.Duration)
	return report, nil
}

// scrapeArticle fetches, parses and saves one article. Only a store failure
// or cancellation is returned as an error.
func (s *Scraper) scrapeArticle(ctx context.Context, link discovered, report *Report) error {
	page, err := s.fetcher.Fetch(ctx, link.url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Failed++
		s.logger.Error("fetching article", "url", link.url, "error", err)
		return nil
	}

	var article *core.Article
	for a := range s.extractor.Extract(page) {
		article = a
	}
	if article == nil {
		report.ParseFailures++
		return nil
	}
	// The link is the identity the ledger knows; redirects must not change it.
	article.URL = link.url
	article.Category = link.category
	article.ScrapedAt = s.now()

	images := s.downloadImages(ctx, article, report)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.articles.SaveArticle(ctx, article, images); err != nil {
		if errors.Is(err, core.ErrInvalidArticle) {
			report.ParseFailures++
			s.logger.Warn("dropping invalid article", "url", link.url, "error", err)
			return nil
		}
		return fmt.Errorf("saving article %s: %w", link.url, err)
	}
	report.Saved++
	s.logger.Debug("saved article", "url", article.URL, "title", article.Title, "images", len(images))
	return nil
}

func (s *Scraper) downloadImages(ctx context.Context, article *core.Article, report *Report) []*core.ImageAsset {
	var images []*core.ImageAsset
	for _, imageURL := range article.Images {
		asset := &core.ImageAsset{ArticleURL: article.URL, URL: imageURL}
		if s.assets != nil {
			if err := s.storeImage(ctx, asset); err != nil {
				if ctx.Err() != nil {
					return images
				}
				report.ImageFailures++
				s.logger.Warn("downloading image", "url", imageURL, "article", article.URL, "error", err)
				continue
			}
			report.Images++
		}
		images = append(images, asset)
	}
	return images
}

func (s *Scraper) storeImage(ctx context.Context, asset *core.ImageAsset) error {
	page, err := s.fetcher.Fetch(ctx, asset.URL)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(page.Body)
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: %s is %s, not an image", core.ErrParseFailure, asset.URL, contentType)
	}
	ref, err := s.assets.Put(ctx, assets.KeyFor(asset.URL, contentType), page.Body, contentType)
	if err != nil {
		return err
	}
	asset.PayloadRef = ref
	asset.ContentType = contentType
	return nil
}

// discover collects article links from every category and feed, in order,
// without duplicates, up to MaxArticles.
func (s *Scraper) discover(ctx context.Context, report *Report) ([]discovered, error) {
	var links []discovered
	seen := make(map[string]bool)
	add := func(category string, urls []string) int {
		added := 0
		for _, u := range urls {
			if seen[u] || s.full(len(links)) {
				continue
			}
			seen[u] = true
			links = append(links, discovered{url: u, category: category})
			added++
		}
		return added
	}

	for _, cat := range s.cfg.Categories {
		if s.full(len(links)) {
			break
		}
		if err := s.walkCategory(ctx, cat, add, len(links), report); err != nil {
			return links, err
		}
	}

	for _, feedURL := range s.cfg.Feeds {
		if s.full(len(links)) {
			break
		}
		urls, err := s.feeds.Discover(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			report.FailedPages++
			s.logger.Error("reading feed", "feed", feedURL, "error", err)
			continue
		}
		add("feed", urls)
	}
	return links, nil
}

func (s *Scraper) full(n int) bool {
	return s.cfg.MaxArticles > 0 && n >= s.cfg.MaxArticles
}

// walkCategory drives the pagination state machine for one category.
// A browser session is opened on entering the load-more phase and closed
// when the walk ends, whichever way it ends.
func (s *Scraper) walkCategory(ctx context.Context, cat config.Category, add func(string, []string) int, have int, report *Report) error {
	categoryURL := s.cfg.BaseURL + cat.Path
	logger := s.logger.With("category", cat.Path)

	budget := 0
	if s.cfg.MaxArticles > 0 {
		budget = s.cfg.MaxArticles - have
	}

	var session Session
	defer func() {
		if session != nil {
			if err := session.Close(); err != nil {
				logger.Warn("closing browser session", "error", err)
			}
		}
	}()

	state := StartPagination()
	for !state.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var obs Observation
		switch state.Phase {
		case PhaseListing:
			obs = s.listPage(ctx, cat, categoryURL, state.Page, add, logger)
		case PhaseLoadingMore:
			if session == nil {
				var err error
				session, err = s.openSession(ctx, categoryURL)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					logger.Error("opening browser session", "error", err)
					obs.Failed = true
					break
				}
			}
			obs = s.loadMore(ctx, session, cat, add, logger)
		}

		if obs.Failed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			report.FailedPages++
		}
		state = state.Next(obs, budget)
	}

	logger.Info("category exhausted", "links", state.Collected)
	return nil
}

func (s *Scraper) listPage(ctx context.Context, cat config.Category, categoryURL string, pageNum int, add func(string, []string) int, logger *slog.Logger) Observation {
	pageURL := ListingURL(categoryURL, pageNum)
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logger.Error("fetching listing page", "url", pageURL, "error", err)
		return Observation{Failed: true}
	}
	listing, err := s.extractor.ExtractLinks(page, cat.Selector())
	if err != nil {
		logger.Error("parsing listing page", "url", pageURL, "error", err)
		return Observation{Failed: true}
	}

	added := add(cat.Path, listing.Links)
	logger.Info("listing page", "page", pageNum, "total_pages", listing.TotalPages, "links", len(listing.Links), "new", added)
	return Observation{
		NewLinks:    added,
		HasNextPage: listing.HasNextPage(pageNum),
		HasLoadMore: listing.HasLoadMore && cat.Mode == config.ModeLoadMore && s.sessions != nil,
		TotalPages:  listing.TotalPages,
	}
}

func (s *Scraper) openSession(ctx context.Context, categoryURL string) (Session, error) {
	if s.sessions == nil {
		return nil, ErrNoBrowser
	}
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		session.Close()
		return nil, err
	}
	if err := session.Open(ctx, categoryURL); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func (s *Scraper) loadMore(ctx context.Context, session Session, cat config.Category, add func(string, []string) int, logger *slog.Logger) Observation {
	if err := s.limiter.Wait(ctx); err != nil {
		return Observation{Failed: true}
	}
	clicked, err := session.LoadMore(ctx)
	if err != nil {
		logger.Error("clicking load more", "error", err)
		return Observation{Failed: true}
	}
	if !clicked {
		logger.Info("no load more control")
		return Observation{}
	}

	hrefs, err := session.Links(ctx, cat.Selector())
	if err != nil {
		logger.Error("collecting links", "error", err)
		return Observation{Failed: true}
	}
	var links []string
	for _, href := range hrefs {
		if link, err := core.CanonicalURL(href); err == nil {
			links = append(links, link)
		}
	}

	added := add(cat.Path, links)
	logger.Info("loaded more", "links", len(links), "new", added)
	return Observation{NewLinks: added, HasLoadMore: true}
}
