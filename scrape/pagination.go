package scrape

import "fmt"

// Phase is the position of a category walk.
type Phase int

const (
	// PhaseListing walks numbered listing pages over plain HTTP.
	PhaseListing Phase = iota
	// PhaseLoadingMore clicks a load-more control in a browser session.
	PhaseLoadingMore
	// PhaseExhausted halts fetching for the category.
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseListing:
		return "listing"
	case PhaseLoadingMore:
		return "loading-more"
	case PhaseExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Pagination is the state of one category walk. It is a value threaded
// through the walk; each step produces the next state from an Observation.
type Pagination struct {
	Phase Phase
	// Page is the 1-based listing page to fetch while in PhaseListing.
	Page int
	// Cursor counts load-more clicks while in PhaseLoadingMore.
	Cursor int
	// Collected is the number of new links gathered so far.
	Collected int
	// TotalPages is the listing page count last reported, 0 when unknown.
	TotalPages int
}

// Observation is what one step of a walk saw.
type Observation struct {
	NewLinks    int
	HasNextPage bool
	HasLoadMore bool
	// TotalPages is the page count a listing page reported, 0 when absent.
	TotalPages int
	Failed     bool
}

// StartPagination returns the initial state of a walk.
func StartPagination() Pagination {
	return Pagination{Phase: PhaseListing, Page: 1}
}

// Done reports whether the walk has halted.
func (p Pagination) Done() bool {
	return p.Phase == PhaseExhausted
}

// Next computes the state after obs. maxLinks caps Collected; a non-positive
// value means no cap. Exhausted is absorbing. A failed listing page is skipped
// when an earlier page reported more pages after it; any other failure ends
// the walk.
func (p Pagination) Next(obs Observation, maxLinks int) Pagination {
	if p.Phase == PhaseExhausted {
		return p
	}

	next := p
	next.Collected += obs.NewLinks
	if !obs.Failed && obs.TotalPages > 0 {
		next.TotalPages = obs.TotalPages
	}

	exhausted := next
	exhausted.Phase = PhaseExhausted

	if maxLinks > 0 && next.Collected >= maxLinks {
		return exhausted
	}
	if obs.Failed {
		if p.Phase == PhaseListing && p.Page < p.TotalPages {
			next.Page++
			return next
		}
		return exhausted
	}

	switch p.Phase {
	case PhaseListing:
		if obs.HasNextPage && obs.NewLinks > 0 {
			next.Page++
			return next
		}
		if obs.HasLoadMore {
			next.Phase = PhaseLoadingMore
			next.Cursor = 0
			return next
		}
		return exhausted
	case PhaseLoadingMore:
		if obs.HasLoadMore && obs.NewLinks > 0 {
			next.Cursor++
			return next
		}
		return exhausted
	default:
		return exhausted
	}
}
