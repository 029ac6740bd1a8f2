package timeline

import (
	"context"
	"time"

	"salon-chat/internal/events"
)

// FetchFunc retrieves one backward page: up to limit messages strictly
// older than before (the newest page when before is nil), in chronological
// order, plus whether older history remains.
type FetchFunc func(ctx context.Context, before *time.Time, limit int) ([]events.MessagePayload, bool, error)

// Paginator walks a conversation's history backward. The cursor is the
// accepted timestamp of the oldest message seen so far; the strict
// older-than comparison on the server guarantees no duplicates, and using
// the same field that orders the log guarantees no gaps. Once the server
// reports no more history the paginator is exhausted for good.
type Paginator struct {
	fetch  FetchFunc
	limit  int
	cursor *time.Time
	done   bool
}

func NewPaginator(fetch FetchFunc, limit int) *Paginator {
	if limit <= 0 {
		limit = 50
	}
	return &Paginator{fetch: fetch, limit: limit}
}

// Next fetches the next older page. It returns an empty page once history
// is exhausted.
func (p *Paginator) Next(ctx context.Context) ([]events.MessagePayload, error) {
	if p.done {
		return nil, nil
	}

	page, hasMore, err := p.fetch(ctx, p.cursor, p.limit)
	if err != nil {
		return nil, err
	}
	if !hasMore {
		p.done = true
	}
	if len(page) > 0 {
		oldest := page[0].AcceptedAt
		p.cursor = &oldest
	}
	return page, nil
}

// HasMore reports whether another Next call can yield messages.
func (p *Paginator) HasMore() bool {
	return !p.done
}
