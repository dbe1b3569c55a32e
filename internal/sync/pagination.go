package sync

import (
	"context"
	"strconv"

	"github.com/atelier-ops/atelier-sync/internal/erp"
)

// DefaultPageLimit caps how many remote records one invocation processes
const DefaultPageLimit = 50

// Searcher is the part of erp.Client a PageStrategy needs
type Searcher interface {
	Search(ctx context.Context, entity string, query erp.SearchQuery) (*erp.SearchResult, error)
}

// Page is the unit of work of one invocation
type Page struct {
	Records []erp.Record

	// NextCursor identifies the following remote page, or "" when there is none
	NextCursor string

	// Truncated reports that the remote page held more records than were kept
	Truncated bool
}

// PageStrategy decides which remote records one invocation reconciles
type PageStrategy interface {
	FetchPage(ctx context.Context, searcher Searcher, entity, since string) (*Page, error)
}

// SinglePage fetches the first remote page and keeps at most Limit records.
// Later pages are reported through NextCursor but never fetched.
type SinglePage struct {
	Limit int
}

// FetchPage implements PageStrategy
func (s SinglePage) FetchPage(ctx context.Context, searcher Searcher, entity, since string) (*Page, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	result, err := searcher.Search(ctx, entity, erp.SearchQuery{Page: 1, Since: since})
	if err != nil {
		return nil, err
	}

	page := &Page{Records: result.Records}
	if len(page.Records) > limit {
		page.Records = page.Records[:limit]
		page.Truncated = true
	}
	if result.TotalPages > result.Page {
		page.NextCursor = strconv.Itoa(result.Page + 1)
	}
	return page, nil
}
