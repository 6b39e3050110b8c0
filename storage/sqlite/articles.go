package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/poiesic/newsrag/core"
)

const timeLayout = time.RFC3339Nano

// SaveArticle stores an article and its images, replacing a previous copy.
func (s *ArticleStore) SaveArticle(ctx context.Context, article *core.Article, images []*core.ImageAsset) error {
	if err := core.ValidateArticle(article); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	scrapedAt := article.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO articles (url, title, body, published, category, scraped_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
    title = excluded.title,
    body = excluded.body,
    published = excluded.published,
    category = excluded.category,
    scraped_at = excluded.scraped_at`,
		article.URL, article.Title, article.Body, formatTime(article.Published), article.Category, formatTime(scrapedAt))
	if err != nil {
		return fmt.Errorf("saving article %s: %w", article.URL, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM article_images WHERE article_url = ?", article.URL); err != nil {
		return fmt.Errorf("clearing images for %s: %w", article.URL, err)
	}
	for i, img := range images {
		_, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO article_images (article_url, position, url, payload_ref, content_type)
VALUES (?, ?, ?, ?, ?)`,
			article.URL, i, img.URL, img.PayloadRef, img.ContentType)
		if err != nil {
			return fmt.Errorf("saving image %s: %w", img.URL, err)
		}
	}

	return tx.Commit()
}

// HasArticle reports whether an article URL has been saved.
func (s *ArticleStore) HasArticle(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE url = ?", url).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountArticles returns the number of saved articles.
func (s *ArticleStore) CountArticles(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n)
	return n, err
}

// ListArticles returns all saved articles ordered by URL, with image URLs attached.
func (s *ArticleStore) ListArticles(ctx context.Context) ([]*core.Article, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT url, title, body, published, category, scraped_at
FROM articles ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var articles []*core.Article
	for rows.Next() {
		var (
			a                    core.Article
			published, scrapedAt sql.NullString
			category             sql.NullString
		)
		if err := rows.Scan(&a.URL, &a.Title, &a.Body, &published, &category, &scrapedAt); err != nil {
			return nil, err
		}
		a.Published = parseTime(published)
		a.ScrapedAt = parseTime(scrapedAt)
		a.Category = category.String
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, a := range articles {
		images, err := s.ImagesFor(ctx, a.URL)
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			a.Images = append(a.Images, img.URL)
		}
	}
	return articles, nil
}

// ImagesFor returns the stored images of an article in document order.
func (s *ArticleStore) ImagesFor(ctx context.Context, articleURL string) ([]*core.ImageAsset, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT url, payload_ref, content_type
FROM article_images WHERE article_url = ? ORDER BY position`, articleURL)
	if err != nil {
		return nil, fmt.Errorf("listing images for %s: %w", articleURL, err)
	}
	defer rows.Close()

	var images []*core.ImageAsset
	for rows.Next() {
		var (
			img              = &core.ImageAsset{ArticleURL: articleURL}
			ref, contentType sql.NullString
		)
		if err := rows.Scan(&img.URL, &ref, &contentType); err != nil {
			return nil, err
		}
		img.PayloadRef = ref.String
		img.ContentType = contentType.String
		images = append(images, img)
	}
	return images, rows.Err()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
