package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/services"
	"github.com/desertthunder/zester/internal/shared"
)

// defaultTrackBatch is how many stub ids are completed per request.
const defaultTrackBatch = 50

// Options tunes an [ArchiveEngine]. Retry and Pacing are taken as given, so a zero Retry never retries
// and a zero Pacing never waits. Workers and TrackBatch fall back to defaults.
type Options struct {
	Retry RetryPolicy
	// Pacing is the delay between successive track downloads.
	Pacing time.Duration
	// Workers > 1 downloads tracks concurrently, paced by a shared token bucket.
	Workers int
	// TrackBatch is the number of stub tracks completed per request during hydration.
	TrackBatch int
}

// ArchiveEngine runs the fetch, hydrate and download phases against a [services.Transport].
//
// Phases never overlap; each runs to completion before the caller starts the next.
type ArchiveEngine struct {
	transport services.Transport
	opts      Options
}

// NewArchiveEngine creates an engine over transport.
func NewArchiveEngine(transport services.Transport, opts Options) *ArchiveEngine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TrackBatch <= 0 {
		opts.TrackBatch = defaultTrackBatch
	}
	return &ArchiveEngine{transport: transport, opts: opts}
}

// Options returns the effective options.
func (e *ArchiveEngine) Options() Options {
	return e.opts
}

// Profile fetches the user's counts, retrying transient failures.
func (e *ArchiveEngine) Profile(ctx context.Context, h EventHandler) (*models.Profile, error) {
	if e.transport == nil {
		return nil, fmt.Errorf("%w: transport not initialized", shared.ErrNotAuthenticated)
	}
	h = orNop(h)
	pause := func(attempt int) {
		h.Handle(Event{Kind: RetryPause, Phase: PhaseLikes, Delay: e.opts.Retry.Delay, Attempt: attempt})
	}
	return withRetry(ctx, e.opts.Retry, pause, func() (*models.Profile, error) {
		return e.transport.Profile(ctx)
	})
}

// Likes fetches every liked track, most recent first.
func (e *ArchiveEngine) Likes(ctx context.Context, h EventHandler) (models.Collection[models.Track], error) {
	return FetchAll(ctx, PhaseLikes, e.transport.LikesPage, e.opts.Retry, h)
}

// PlaylistSummaries fetches the identity of every liked and owned playlist.
func (e *ArchiveEngine) PlaylistSummaries(ctx context.Context, h EventHandler) (models.Collection[models.PlaylistSummary], error) {
	return FetchAll(ctx, PhasePlaylists, e.transport.PlaylistsPage, e.opts.Retry, h)
}

// Playlists lists and then hydrates every playlist.
func (e *ArchiveEngine) Playlists(ctx context.Context, h EventHandler) ([]models.Playlist, error) {
	summaries, err := e.PlaylistSummaries(ctx, h)
	if err != nil {
		return nil, err
	}
	return e.Hydrate(ctx, summaries, h)
}
