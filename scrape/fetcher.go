package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/newsrag/core"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 32 << 20
)

// RawPage is a fetched HTTP response body.
type RawPage struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// PageFetcher fetches a URL and classifies failures as
// core.ErrTransientNetwork or core.ErrPermanentHTTP.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*RawPage, error)
}

// Fetcher is the HTTP PageFetcher. Every request waits on the shared
// Limiter, and transient failures are retried with backoff.
type Fetcher struct {
	client       *http.Client
	limiter      *Limiter
	userAgent    string
	maxRetries   int
	baseDelay    time.Duration
	maxBodyBytes int64
	logger       *slog.Logger
}

var _ PageFetcher = (*Fetcher)(nil)

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithRetries sets how many times a transient failure is retried and the base backoff.
func WithRetries(maxRetries int, baseDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.maxRetries = maxRetries
		f.baseDelay = baseDelay
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodyBytes = n
	}
}

// NewFetcher creates a Fetcher that waits on limiter before every request.
func NewFetcher(limiter *Limiter, opts ...FetcherOption) *Fetcher {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	f := &Fetcher{
		client:       &http.Client{Timeout: defaultRequestTimeout},
		limiter:      limiter,
		userAgent:    "newsrag/1.0",
		maxRetries:   3,
		baseDelay:    time.Second,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url. Transient failures are retried up to the configured number
// of times; after that, or on a permanent failure, the error is returned.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*RawPage, error) {
	var page *RawPage
	err := RetryWithBackoff(ctx, func() error {
		var err error
		page, err = f.fetchOnce(ctx, url)
		if err != nil && errors.Is(err, core.ErrTransientNetwork) {
			f.logger.Warn("transient fetch failure", "url", url, "error", err)
		}
		return err
	}, f.maxRetries+1, f.baseDelay)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*RawPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPermanentHTTP, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: GET %s: %w", core.ErrTransientNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &core.HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrTransientNetwork, url, err)
	}

	return &RawPage{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
