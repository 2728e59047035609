package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
)

// PageFetcher requests the page at cursor. An empty cursor is the first page.
type PageFetcher[T any] func(ctx context.Context, cursor string) (*models.Page[T], error)

// FetchAll walks a paginated listing to the end and returns every item in server order.
//
// A transient failure emits [RetryPause], waits policy.Delay and re-requests the same cursor,
// so nothing is skipped or duplicated. Any other failure (including exhausted retries) aborts and
// no partial collection is returned.
func FetchAll[T any](ctx context.Context, phase Phase, fetch PageFetcher[T], policy RetryPolicy, h EventHandler) (models.Collection[T], error) {
	h = orNop(h)
	items := make(models.Collection[T], 0)
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pause := func(attempt int) {
			h.Handle(Event{Kind: RetryPause, Phase: phase, Delay: policy.Delay, Attempt: attempt})
		}
		page, err := withRetry(ctx, policy, pause, func() (*models.Page[T], error) {
			return fetch(ctx, cursor)
		})
		if err != nil {
			return nil, err
		}
		if page == nil {
			return nil, fmt.Errorf("%w: empty page at cursor %q", shared.ErrMalformedResponse, cursor)
		}

		items = append(items, page.Items...)
		h.Handle(Event{Kind: Progress, Phase: phase, Count: len(page.Items)})

		if !page.HasNext() {
			return items, nil
		}
		if page.Next == cursor {
			return nil, fmt.Errorf("%w: cursor %q did not advance", shared.ErrMalformedResponse, cursor)
		}
		cursor = page.Next
	}
}
