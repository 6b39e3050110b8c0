package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/gofeed"

	"github.com/poiesic/newsrag/core"
)

// FeedLinks discovers article links from RSS or Atom feeds. Feeds are fetched
// through the PageFetcher so they share its rate limit and retry policy.
type FeedLinks struct {
	fetcher PageFetcher
	parser  *gofeed.Parser
	logger  *slog.Logger
}

func NewFeedLinks(fetcher PageFetcher) *FeedLinks {
	return &FeedLinks{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		logger:  slog.Default().With("component", "feeds"),
	}
}

// Discover returns canonical item links of one feed in feed order.
func (f *FeedLinks) Discover(ctx context.Context, feedURL string) ([]string, error) {
	page, err := f.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := f.parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing feed %s: %w", core.ErrParseFailure, feedURL, err)
	}

	var links []string
	seen := make(map[string]bool)
	for _, item := range feed.Items {
		itemURL := item.Link
		if itemURL == "" {
			itemURL = item.GUID
		}
		link, err := core.CanonicalURL(itemURL)
		if err != nil {
			f.logger.Debug("skipping feed item", "feed", feedURL, "item", itemURL, "error", err)
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}

	f.logger.Info("parsed feed", "feed", feedURL, "items", len(feed.Items), "links", len(links))
	return links, nil
}
