package scrape

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out outbound requests. One Limiter is shared by every
// request a scrape run makes: listing pages, article pages, images and
// browser load-more clicks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows one request per delay. A non-positive delay disables limiting.
func NewLimiter(delay time.Duration) *Limiter {
	if delay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
