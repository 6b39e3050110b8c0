package scrape

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/poiesic/newsrag/core"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Extractor turns fetched article pages into Articles. It holds no state
// between pages and never consults the dedup ledger.
type Extractor struct {
	titleSelector   string
	contentSelector string
	loadMoreText    string
	logger          *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTitleSelector sets the CSS selector tried first for the title.
func WithTitleSelector(sel string) ExtractorOption {
	return func(e *Extractor) {
		e.titleSelector = sel
	}
}

// WithContentSelector sets the CSS selector of the article body container.
func WithContentSelector(sel string) ExtractorOption {
	return func(e *Extractor) {
		e.contentSelector = sel
	}
}

// WithLoadMoreText sets the label that identifies a load-more control.
func WithLoadMoreText(text string) ExtractorOption {
	return func(e *Extractor) {
		e.loadMoreText = text
	}
}

// WithExtractorLogger sets the logger that reports dropped pages.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger.With("component", "extractor")
		}
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		loadMoreText: "Load More",
		logger:       slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract yields the article on page, or nothing if the page cannot be
// parsed. Parse failures are logged with their reason. The scrape job reads
// every fetched article page through it.
func (e *Extractor) Extract(page *RawPage) iter.Seq[*core.Article] {
	return func(yield func(*core.Article) bool) {
		article, err := e.ParseArticle(page)
		if err != nil {
			e.logger.Warn("dropping article", "url", page.URL, "error", err)
			return
		}
		yield(article)
	}
}

// ExtractAll chains Extract over pages. A page that fails to parse does not
// affect its siblings. It is the batch entry point for callers holding pages
// already fetched, such as a saved crawl; Scraper extracts one page at a time.
func (e *Extractor) ExtractAll(pages iter.Seq[*RawPage]) iter.Seq[*core.Article] {
	return func(yield func(*core.Article) bool) {
		for page := range pages {
			for article := range e.Extract(page) {
				if !yield(article) {
					return
				}
			}
		}
	}
}

// ParseArticle parses a single article page. Errors wrap core.ErrParseFailure.
func (e *Extractor) ParseArticle(page *RawPage) (*core.Article, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", core.ErrParseFailure)
	}
	canonical, err := core.CanonicalURL(page.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrParseFailure, err)
	}
	base, err := url.Parse(strings.TrimSpace(page.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrParseFailure, err)
	}
	base.Host = strings.ToLower(base.Host)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %w", core.ErrParseFailure, err)
	}

	title := e.title(doc)
	if title == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrParseFailure, core.ErrEmptyTitle)
	}

	body := e.body(doc)
	if body == "" {
		body = readableText(page.Body, base)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrParseFailure, core.ErrEmptyContent)
	}

	return &core.Article{
		URL:       canonical,
		Title:     title,
		Body:      body,
		Published: published(doc),
		Images:    images(doc, base),
	}, nil
}

func (e *Extractor) title(doc *goquery.Document) string {
	if e.titleSelector != "" {
		if t := cleanText(doc.Find(e.titleSelector).First().Text()); t != "" {
			return t
		}
	}
	if t := cleanText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	og, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	return cleanText(og)
}

// body collects headings, paragraphs and list items from the content
// container, one block per element.
func (e *Extractor) body(doc *goquery.Document) string {
	if e.contentSelector == "" {
		return ""
	}
	container := doc.Find(e.contentSelector).First()
	if container.Length() == 0 {
		return ""
	}

	var parts []string
	container.Find("h1, h2, h3, p, ul, ol").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "ul", "ol":
			s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				if t := cleanText(li.Text()); t != "" {
					parts = append(parts, "- "+t)
				}
			})
		default:
			if s.ParentsFiltered("li").Length() > 0 {
				return
			}
			if t := cleanText(s.Text()); t != "" {
				parts = append(parts, t)
			}
		}
	})
	return strings.Join(parts, "\n\n")
}

func readableText(html []byte, base *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(html), base)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func published(doc *goquery.Document) time.Time {
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := dateparse.ParseIn(strings.TrimSpace(dt), time.UTC); err == nil {
			return t.UTC()
		}
	}
	if text := cleanText(doc.Find("time").First().Text()); text != "" {
		if t, err := dateparse.ParseIn(text, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// images returns absolute http(s) image URLs with a known image extension,
// de-duplicated in document order.
func images(doc *goquery.Document, base *url.URL) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = s.Attr("data-src")
		}
		abs, ok := resolveImage(base, src)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	})
	return out
}

func resolveImage(base *url.URL, src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !imageExtensions[strings.ToLower(path.Ext(abs.Path))] {
		return "", false
	}
	return abs.String(), true
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
