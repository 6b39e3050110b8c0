package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/newsrag/core"
)

var pageCountPattern = regexp.MustCompile(`Page\s+(\d+)\s+of\s+(\d+)`)

// LinkPage is what a listing page offers for navigation.
type LinkPage struct {
	// Links are canonical article URLs in document order, without duplicates.
	Links []string
	// Page and TotalPages come from a "Page N of M" marker; zero when absent.
	Page       int
	TotalPages int
	// HasLoadMore reports a visible load-more control.
	HasLoadMore bool
}

// HasNextPage reports whether the marker names a later page.
func (l *LinkPage) HasNextPage(current int) bool {
	return l.TotalPages > 0 && current < l.TotalPages
}

// ExtractLinks collects article links matching selector from a listing page.
func (e *Extractor) ExtractLinks(page *RawPage, selector string) (*LinkPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing listing html: %w", core.ErrParseFailure, err)
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrParseFailure, err)
	}

	result := &LinkPage{}
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link, ok := canonicalLink(base, href)
		if !ok || seen[link] {
			return
		}
		seen[link] = true
		result.Links = append(result.Links, link)
	})

	if m := pageCountPattern.FindStringSubmatch(doc.Text()); m != nil {
		result.Page, _ = strconv.Atoi(m[1])
		result.TotalPages, _ = strconv.Atoi(m[2])
	}
	result.HasLoadMore = e.hasLoadMore(doc)
	return result, nil
}

// hasLoadMore looks for the innermost div, button or link whose text
// contains the load-more label.
func (e *Extractor) hasLoadMore(doc *goquery.Document) bool {
	if e.loadMoreText == "" {
		return false
	}
	contains := func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), e.loadMoreText)
	}
	return doc.Find("div, button, a").FilterFunction(func(i int, s *goquery.Selection) bool {
		return contains(i, s) && s.Children().FilterFunction(contains).Length() == 0
	}).Length() > 0
}

// canonicalLink resolves href against base and canonicalizes it.
func canonicalLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	link, err := core.CanonicalURL(abs.String())
	if err != nil {
		return "", false
	}
	return link, true
}

// ListingURL returns the URL of a numbered listing page. Page 1 is the
// category URL itself.
func ListingURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	return strings.TrimRight(categoryURL, "/") + "/page/" + strconv.Itoa(page) + "/"
}
