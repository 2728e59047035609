package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
)

// Hydrate fetches the full playlist for each summary, in order.
//
// A playlist that cannot be fetched or completed is reported once with [ItemError] and left out of the
// result; the batch continues. The error is non-nil only for fatal conditions (cancellation, rejected
// credentials), in which case no playlists are returned.
func (e *ArchiveEngine) Hydrate(ctx context.Context, summaries []models.PlaylistSummary, h EventHandler) ([]models.Playlist, error) {
	h = orNop(h)
	playlists := make([]models.Playlist, 0, len(summaries))

	for i := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary := summaries[i]
		h.Handle(Event{Kind: ItemStart, Phase: PhasePlaylists, Summary: &summary})

		playlist, stage, err := e.hydrateOne(ctx, summary, h)
		if err != nil {
			if shared.IsFatal(err) {
				return nil, err
			}
			h.Handle(Event{Kind: ItemError, Phase: PhasePlaylists, Summary: &summary, Stage: stage, Err: err})
			continue
		}

		h.Handle(Event{Kind: ItemDone, Phase: PhasePlaylists, Summary: &summary, Playlist: playlist})
		playlists = append(playlists, *playlist)
	}
	return playlists, nil
}

func (e *ArchiveEngine) hydrateOne(ctx context.Context, summary models.PlaylistSummary, h EventHandler) (*models.Playlist, Stage, error) {
	pause := func(attempt int) {
		h.Handle(Event{Kind: RetryPause, Phase: PhasePlaylists, Summary: &summary, Delay: e.opts.Retry.Delay, Attempt: attempt})
	}

	playlist, err := withRetry(ctx, e.opts.Retry, pause, func() (*models.Playlist, error) {
		return e.transport.Playlist(ctx, summary.ID)
	})
	if err != nil {
		return nil, StageFetch, err
	}
	if playlist == nil || playlist.ID != summary.ID {
		return nil, StageComplete, fmt.Errorf("%w: playlist %d returned a different record", shared.ErrIncompleteRecord, summary.ID)
	}

	if err := e.completeTracks(ctx, playlist, pause); err != nil {
		return nil, StageComplete, err
	}
	if playlist.Tracks == nil {
		playlist.Tracks = []models.Track{}
	}
	return playlist, StageNone, nil
}

// completeTracks replaces id-only tracks with full records, in batches. Ids the service no longer
// returns (deleted or private tracks) are dropped from the playlist.
func (e *ArchiveEngine) completeTracks(ctx context.Context, playlist *models.Playlist, pause func(int)) error {
	ids := playlist.StubIDs()
	if len(ids) == 0 {
		return nil
	}

	full := make(map[int64]models.Track, len(ids))
	for start := 0; start < len(ids); start += e.opts.TrackBatch {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := ids[start:min(start+e.opts.TrackBatch, len(ids))]
		tracks, err := withRetry(ctx, e.opts.Retry, pause, func() ([]models.Track, error) {
			return e.transport.Tracks(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("complete playlist %d: %w", playlist.ID, err)
		}
		for _, t := range tracks {
			if t.IsStub() {
				return fmt.Errorf("%w: track %d came back without metadata", shared.ErrIncompleteRecord, t.ID)
			}
			full[t.ID] = t
		}
	}

	completed := make([]models.Track, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		if !t.IsStub() {
			completed = append(completed, t)
			continue
		}
		if ft, ok := full[t.ID]; ok {
			completed = append(completed, ft)
		}
	}
	playlist.Tracks = completed
	return nil
}
