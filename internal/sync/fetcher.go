package sync

import (
	"context"
	"fmt"

	"github.com/salonhub/booking-sync/internal/retry"
)

const (
	// DefaultPageSize is used when FetchOptions.PageSize is not set
	DefaultPageSize = 100

	// defaultMaxPages bounds a pagination loop whose upstream never returns an empty page
	defaultMaxPages = 10000
)

// PageFunc retrieves one page. Pages are numbered from 1.
type PageFunc[T any] func(ctx context.Context, page, pageSize int) ([]T, error)

// FetchOptions controls a pagination loop
type FetchOptions struct {
	// PageSize is the number of items requested per page
	PageSize int
	// StopOnShortPage ends the loop as soon as a page returns fewer items
	// than PageSize. Only set for resources where a short page reliably
	// marks the end.
	StopOnShortPage bool
	// MaxPages bounds the loop; zero means defaultMaxPages
	MaxPages int
	// OnPage is called after every page with the running total
	OnPage func(total int)
}

// FetchAll retrieves pages sequentially, each through exec, until a page is
// empty (or short, see StopOnShortPage). On failure it returns the items
// accumulated so far together with the error; recovering from it is up to
// the caller.
func FetchAll[T any](
	ctx context.Context,
	exec *retry.Executor,
	op string,
	opts FetchOptions,
	fetch PageFunc[T],
) ([]T, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var items []T
	for page := 1; ; page++ {
		if page > maxPages {
			return items, fmt.Errorf("%s: stopped after %d pages without reaching the end", op, maxPages)
		}

		batch, err := retry.Execute(ctx, exec, fmt.Sprintf("%s page %d", op, page), func(ctx context.Context) ([]T, error) {
			return fetch(ctx, page, pageSize)
		})
		if err != nil {
			return items, err
		}

		items = append(items, batch...)
		if opts.OnPage != nil {
			opts.OnPage(len(items))
		}

		if len(batch) == 0 {
			return items, nil
		}
		if opts.StopOnShortPage && len(batch) < pageSize {
			return items, nil
		}
	}
}
