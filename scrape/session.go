package scrape

import "context"

// Session is a live browser page used to drive load-more controls.
// A session is owned by exactly one category walk and must be closed
// when the walk ends.
type Session interface {
	// Open navigates to url and waits for the page to settle.
	Open(ctx context.Context, url string) error

	// Links returns the absolute href of every element matching selector.
	Links(ctx context.Context, selector string) ([]string, error)

	// LoadMore clicks the load-more control. It returns false when no
	// visible control is present.
	LoadMore(ctx context.Context) (bool, error)

	// Close releases the browser.
	Close() error
}

// SessionFactory creates browser sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
