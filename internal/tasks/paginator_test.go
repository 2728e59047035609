package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	tu "github.com/desertthunder/zester/internal/testing"
)

func page(next string, tracks ...models.Track) tu.PageResult[models.Track] {
	return tu.PageResult[models.Track]{Page: &models.Page[models.Track]{Items: tracks, Next: next}}
}

func failure(err error) tu.PageResult[models.Track] {
	return tu.PageResult[models.Track]{Err: err}
}

func ids(tracks []models.Track) []int64 {
	out := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

func TestFetchAll(t *testing.T) {
	a, b, c := mkTrack(1, "a"), mkTrack(2, "b"), mkTrack(3, "c")

	t.Run("transient failure between pages", func(t *testing.T) {
		waits := stubWait(t)
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			page("p2", a, b),
			failure(transientErr()),
			page("", c),
		}}
		rec := &recorder{}

		got, err := NewArchiveEngine(m, testOpts).Likes(context.Background(), rec)
		if err != nil {
			t.Fatalf("Likes() error = %v", err)
		}
		if !slices.Equal(ids(got), []int64{1, 2, 3}) {
			t.Errorf("collection = %v, want [1 2 3]", ids(got))
		}
		if rec.count(RetryPause) != 1 {
			t.Errorf("expected 1 RetryPause, got %d", rec.count(RetryPause))
		}
		if pause := rec.of(RetryPause)[0]; pause.Delay != testOpts.Retry.Delay || pause.Name() != "PausedAfterServerError" {
			t.Errorf("unexpected pause event %+v", pause)
		}
		if waits.count(testOpts.Retry.Delay) != 1 {
			t.Errorf("expected one retry wait, got %v", waits.waits)
		}
		if !slices.Equal(m.LikesCursors, []string{"", "p2", "p2"}) {
			t.Errorf("cursors = %v, want the failed cursor retried", m.LikesCursors)
		}
	})

	t.Run("retries are idempotent", func(t *testing.T) {
		for _, failures := range []int{0, 1, 3} {
			stubWait(t)
			var script []tu.PageResult[models.Track]
			script = append(script, page("p2", a))
			for range failures {
				script = append(script, failure(transientErr()))
			}
			script = append(script, page("p3", b), page("", c))

			got, err := FetchAll(context.Background(), PhaseLikes, (&tu.MockTransport{LikesPages: script}).LikesPage, testOpts.Retry, nil)
			if err != nil {
				t.Fatalf("%d failures: FetchAll() error = %v", failures, err)
			}
			if !slices.Equal(ids(got), []int64{1, 2, 3}) {
				t.Errorf("%d failures: collection = %v", failures, ids(got))
			}
		}
	})

	t.Run("length equals sum of page lengths", func(t *testing.T) {
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			page("p2", a, b),
			page("p3"),
			page("", c, mkTrack(4, "d"), mkTrack(5, "e")),
		}}
		rec := &recorder{}

		got, err := FetchAll(context.Background(), PhaseLikes, m.LikesPage, testOpts.Retry, rec)
		if err != nil {
			t.Fatalf("FetchAll() error = %v", err)
		}

		sum := 0
		for _, ev := range rec.of(Progress) {
			sum += ev.Count
		}
		if len(got) != 5 || sum != 5 {
			t.Errorf("len = %d, progress sum = %d, want 5", len(got), sum)
		}
		if !slices.Equal(rec.trace(), []string{"MoreItemsDownloaded 2", "MoreItemsDownloaded 0", "MoreItemsDownloaded 3"}) {
			t.Errorf("trace = %v", rec.trace())
		}
	})

	t.Run("empty listing", func(t *testing.T) {
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{page("")}}
		got, err := FetchAll(context.Background(), PhaseLikes, m.LikesPage, testOpts.Retry, nil)
		if err != nil {
			t.Fatalf("FetchAll() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil collection, got %#v", got)
		}
	})

	t.Run("non-transient error aborts", func(t *testing.T) {
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			page("p2", a),
			failure(errAuth),
			page("", c),
		}}

		got, err := FetchAll(context.Background(), PhaseLikes, m.LikesPage, testOpts.Retry, nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no partial collection, got %v", ids(got))
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		stubWait(t)
		policy := RetryPolicy{Delay: 1, MaxRetries: 2}
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			failure(transientErr()),
			failure(transientErr()),
			failure(transientErr()),
			page("", a),
		}}
		rec := &recorder{}

		_, err := FetchAll(context.Background(), PhaseLikes, m.LikesPage, policy, rec)
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Errorf("expected ErrRetriesExhausted, got %v", err)
		}
		if shared.IsTransient(err) {
			t.Error("exhausted retries should not look transient")
		}
		if rec.count(RetryPause) != 2 {
			t.Errorf("expected 2 pauses, got %d", rec.count(RetryPause))
		}
	})

	t.Run("cursor must advance", func(t *testing.T) {
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			page("p2", a),
			page("p2", b),
		}}

		_, err := FetchAll(context.Background(), PhaseLikes, m.LikesPage, testOpts.Retry, nil)
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("cancelled between pages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		m := &tu.MockTransport{LikesPages: []tu.PageResult[models.Track]{
			page("p2", a),
			page("", b),
		}}
		h := HandlerFunc(func(Event) { cancel() })

		_, err := FetchAll(ctx, PhaseLikes, m.LikesPage, testOpts.Retry, h)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(m.LikesCursors) != 1 {
			t.Errorf("expected one request before cancellation, got %v", m.LikesCursors)
		}
	})

	t.Run("playlist summaries", func(t *testing.T) {
		m := &tu.MockTransport{PlaylistPages: []tu.PageResult[models.PlaylistSummary]{
			{Page: &models.Page[models.PlaylistSummary]{Items: []models.PlaylistSummary{{ID: 10, Title: "x"}}, Next: "n"}},
			{Page: &models.Page[models.PlaylistSummary]{Items: []models.PlaylistSummary{{ID: 11, Title: "y"}}}},
		}}
		rec := &recorder{}

		got, err := NewArchiveEngine(m, testOpts).PlaylistSummaries(context.Background(), rec)
		if err != nil {
			t.Fatalf("PlaylistSummaries() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
			t.Errorf("unexpected summaries %+v", got)
		}
		for _, ev := range rec.events {
			if ev.Phase != PhasePlaylists {
				t.Errorf("event in phase %s", ev.Phase)
			}
		}
	})
}
