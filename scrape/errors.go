package scrape

import "errors"

var (
	// ErrInvalidMaxAttempts indicates a retry loop was configured with no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrFetcherRequired indicates a scraper was created without a fetcher.
	ErrFetcherRequired = errors.New("fetcher is required")

	// ErrLedgerRequired indicates a scraper was created without a ledger.
	ErrLedgerRequired = errors.New("ledger is required")

	// ErrArticleStoreRequired indicates a scraper was created without an article store.
	ErrArticleStoreRequired = errors.New("article store is required")

	// ErrNoBrowser indicates a load-more walk was requested without a session factory.
	ErrNoBrowser = errors.New("browser sessions are not available")
)
