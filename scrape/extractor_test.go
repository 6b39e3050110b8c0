package scrape

import (
	"slices"
	"testing"
	"time"

	"github.com/poiesic/newsrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html>
<head><meta property="og:title" content="OG Title"></head>
<body>
<main><div><article>
  <header><h1 class="headline">  Robots   Learn to Fold Laundry </h1></header>
  <time datetime="2024-03-06T10:00:00Z">Mar 6, 2024</time>
  <div class="content">
    <h2>What's new</h2>
    <p>Researchers trained a model to fold shirts.</p>
    <ul><li>Faster</li><li><p>Cheaper</p></li></ul>
    <img src="/images/fold.png">
    <img data-src="https://cdn.example.com/lazy.webp">
    <img src="/images/fold.png">
    <img src="/images/diagram.svg">
    <img src="data:image/png;base64,AAAA">
  </div>
</article></div></main>
</body></html>`

func page(url, html string) *RawPage {
	return &RawPage{URL: url, StatusCode: 200, Body: []byte(html)}
}

func TestExtractor_ParseArticle(t *testing.T) {
	e := NewExtractor(WithTitleSelector("h1.headline"), WithContentSelector("div.content"))

	article, err := e.ParseArticle(page("https://Example.com/the-batch/fold/?utm=x#top", articleHTML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/the-batch/fold", article.URL)
	assert.Equal(t, "Robots Learn to Fold Laundry", article.Title)
	assert.Equal(t, "What's new\n\nResearchers trained a model to fold shirts.\n\n- Faster\n\n- Cheaper", article.Body)
	assert.Equal(t, time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), article.Published)
	assert.Equal(t, []string{
		"https://example.com/images/fold.png",
		"https://cdn.example.com/lazy.webp",
	}, article.Images)
}

func TestExtractor_TitleFallbacks(t *testing.T) {
	e := NewExtractor(WithTitleSelector("h1.missing"), WithContentSelector("div.content"))

	article, err := e.ParseArticle(page("https://example.com/a", articleHTML))
	require.NoError(t, err)
	assert.Equal(t, "Robots Learn to Fold Laundry", article.Title)

	ogOnly := `<html><head><meta property="og:title" content="From OG"></head>
<body><div class="content"><p>Body text.</p></div></body></html>`
	article, err = e.ParseArticle(page("https://example.com/b", ogOnly))
	require.NoError(t, err)
	assert.Equal(t, "From OG", article.Title)
}

func TestExtractor_ReadabilityFallback(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.not-there"))
	html := `<html><head><title>Fallback</title></head><body>
<h1>Fallback Story</h1>
<article>
<p>The first paragraph of a long story about machine learning systems that keep getting better at tasks once reserved for people.</p>
<p>The second paragraph continues with more detail about training data, evaluation methods and the limits researchers still face today.</p>
<p>The third paragraph wraps up with what comes next for the field and why practitioners should keep watching these developments.</p>
<p>A fourth paragraph adds commentary from engineers who deployed similar systems, describing the costs, the surprises and the lessons they took away.</p>
<p>A closing paragraph notes that the results were published alongside code, so other teams can reproduce the experiments and extend them further.</p>
</article></body></html>`

	article, err := e.ParseArticle(page("https://example.com/c", html))
	require.NoError(t, err)
	assert.Equal(t, "Fallback Story", article.Title)
	assert.Contains(t, article.Body, "second paragraph")
}

func TestExtractor_TimeTextDate(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.content"))
	html := `<html><body><h1>Dated</h1><time>March 6, 2024</time><div class="content"><p>x</p></div></body></html>`

	article, err := e.ParseArticle(page("https://example.com/d", html))
	require.NoError(t, err)
	assert.Equal(t, 2024, article.Published.Year())
	assert.Equal(t, time.March, article.Published.Month())
	assert.Equal(t, 6, article.Published.Day())
}

func TestExtractor_MissingDateIsZero(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.content"))
	html := `<html><body><h1>Undated</h1><time>sometime</time><div class="content"><p>x</p></div></body></html>`

	article, err := e.ParseArticle(page("https://example.com/e", html))
	require.NoError(t, err)
	assert.True(t, article.Published.IsZero())
	assert.Empty(t, article.Images)
}

func TestExtractor_ParseFailures(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.content"))

	tests := []struct {
		name string
		page *RawPage
		want error
	}{
		{"no title", page("https://example.com/f", `<html><body><div class="content"><p>Body</p></div></body></html>`), core.ErrEmptyTitle},
		{"relative url", page("/relative", articleHTML), core.ErrInvalidURL},
		{"nil page", nil, core.ErrParseFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ParseArticle(tt.page)
			assert.ErrorIs(t, err, core.ErrParseFailure)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtractor_ExtractAllIsolatesFailures(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.content"))
	good := func(title string) string {
		return `<html><body><h1>` + title + `</h1><div class="content"><p>Body of ` + title + `</p></div></body></html>`
	}
	pages := []*RawPage{
		page("https://example.com/1", good("One")),
		page("https://example.com/2", `<html><body><div class="content"><p>no title</p></div></body></html>`),
		page("https://example.com/3", good("Three")),
	}

	var titles []string
	for article := range e.ExtractAll(slices.Values(pages)) {
		titles = append(titles, article.Title)
	}
	assert.Equal(t, []string{"One", "Three"}, titles)
}

func TestExtractor_ExtractAllStopsEarly(t *testing.T) {
	e := NewExtractor(WithContentSelector("div.content"))
	html := `<html><body><h1>T</h1><div class="content"><p>B</p></div></body></html>`
	pages := []*RawPage{page("https://example.com/1", html), page("https://example.com/2", html)}

	count := 0
	for range e.ExtractAll(slices.Values(pages)) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
