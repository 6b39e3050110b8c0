package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<article><div>thumb</div><div><a href="/tag/x/">tag</a><a href="/the-batch/issue-1/">Issue 1</a></div></article>
<article><div>thumb</div><div><a href="/tag/y/">tag</a><a href="https://www.deeplearning.ai/the-batch/issue-2/?ref=list">Issue 2</a></div></article>
<article><div>thumb</div><div><a href="/tag/y/">tag</a><a href="/the-batch/issue-1/#comments">Issue 1 again</a></div></article>
<nav>Page 2 of 5</nav>
</body></html>`

func TestExtractLinks(t *testing.T) {
	e := NewExtractor()
	listing, err := e.ExtractLinks(page("https://www.deeplearning.ai/the-batch/page/2/", listingHTML),
		"article > div:nth-of-type(2) > a:nth-of-type(2)")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.deeplearning.ai/the-batch/issue-1",
		"https://www.deeplearning.ai/the-batch/issue-2",
	}, listing.Links)
	assert.Equal(t, 2, listing.Page)
	assert.Equal(t, 5, listing.TotalPages)
	assert.True(t, listing.HasNextPage(2))
	assert.False(t, listing.HasNextPage(5))
	assert.False(t, listing.HasLoadMore)
}

func TestExtractLinks_LoadMore(t *testing.T) {
	e := NewExtractor(WithLoadMoreText("Load More"))
	html := `<html><body><div class="wrap"><div class="btn">Load More</div></div></body></html>`

	listing, err := e.ExtractLinks(page("https://example.com/tag/science/", html), "a.story")
	require.NoError(t, err)
	assert.Empty(t, listing.Links)
	assert.True(t, listing.HasLoadMore)
	assert.Zero(t, listing.TotalPages)
	assert.False(t, listing.HasNextPage(1))
}

func TestExtractLinks_SkipsNonHTTP(t *testing.T) {
	e := NewExtractor()
	html := `<html><body>
<a class="s" href="mailto:x@example.com">mail</a>
<a class="s" href="javascript:void(0)">js</a>
<a class="s" href="#top">top</a>
<a class="s" href="/ok">ok</a>
</body></html>`

	listing, err := e.ExtractLinks(page("https://example.com/", html), "a.s")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/ok"}, listing.Links)
}

func TestListingURL(t *testing.T) {
	assert.Equal(t, "https://example.com/tag/letters/", ListingURL("https://example.com/tag/letters/", 1))
	assert.Equal(t, "https://example.com/tag/letters/page/3/", ListingURL("https://example.com/tag/letters/", 3))
	assert.Equal(t, "https://example.com/the-batch/page/2/", ListingURL("https://example.com/the-batch", 2))
}
