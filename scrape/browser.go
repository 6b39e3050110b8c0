package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser creates headless Chrome sessions with chromedp.
type Browser struct {
	userAgent    string
	loadMoreText string
	openSettle   time.Duration
	clickSettle  time.Duration
	logger       *slog.Logger
}

var _ SessionFactory = (*Browser)(nil)

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithBrowserUserAgent sets the browser User-Agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *Browser) {
		b.userAgent = ua
	}
}

// WithSettleDelays sets how long to wait after navigation and after each click.
func WithSettleDelays(open, click time.Duration) BrowserOption {
	return func(b *Browser) {
		b.openSettle = open
		b.clickSettle = click
	}
}

// NewBrowser returns a factory for sessions that look for a control whose
// text contains loadMoreText.
func NewBrowser(loadMoreText string, opts ...BrowserOption) *Browser {
	b := &Browser{
		loadMoreText: loadMoreText,
		openSettle:   2 * time.Second,
		clickSettle:  3 * time.Second,
		logger:       slog.Default().With("component", "browser"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewSession starts a headless Chrome process.
func (b *Browser) NewSession(ctx context.Context) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	// The browser outlives any single call, so it hangs off a context that
	// only Close cancels.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b.logger.Debug("browser session started")
	return &browserSession{
		ctx:           browserCtx,
		cancel:        func() { cancelBrowser(); cancelAlloc() },
		loadMoreXPath: loadMoreXPath(b.loadMoreText),
		openSettle:    b.openSettle,
		clickSettle:   b.clickSettle,
		logger:        b.logger,
	}, nil
}

type browserSession struct {
	ctx           context.Context
	cancel        context.CancelFunc
	loadMoreXPath string
	openSettle    time.Duration
	clickSettle   time.Duration
	logger        *slog.Logger
}

// run executes actions on the browser, stopping early if ctx is cancelled.
func (s *browserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *browserSession) Open(ctx context.Context, url string) error {
	s.logger.Debug("opening page", "url", url)
	return s.run(ctx, chromedp.Navigate(url), chromedp.Sleep(s.openSettle))
}

func (s *browserSession) Links(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.href).filter(h => !!h)`,
		selector)
	var links []string
	if err := s.run(ctx, chromedp.Evaluate(script, &links)); err != nil {
		return nil, fmt.Errorf("collecting links: %w", err)
	}
	return links, nil
}

func (s *browserSession) LoadMore(ctx context.Context) (bool, error) {
	script := fmt.Sprintf(`(() => {
  const found = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  for (let i = 0; i < found.snapshotLength; i++) {
    const el = found.snapshotItem(i);
    if (el.offsetParent !== null && !el.disabled) {
      el.scrollIntoView(true);
      el.click();
      return true;
    }
  }
  return false;
})()`, s.loadMoreXPath)

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("clicking load more: %w", err)
	}
	if !clicked {
		return false, nil
	}
	if err := s.run(ctx, chromedp.Sleep(s.clickSettle)); err != nil {
		return true, err
	}
	return true, nil
}

func (s *browserSession) Close() error {
	s.cancel()
	s.logger.Debug("browser session closed")
	return nil
}

func loadMoreXPath(text string) string {
	return fmt.Sprintf(`//*[self::div or self::button or self::a][contains(text(), %q)]`, text)
}
