package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"golang.org/x/time/rate"
)

// TrackWriter receives one track's bytes. Commit makes them visible at the final location;
// Abort discards them. Exactly one of the two is called.
type TrackWriter interface {
	io.Writer
	Commit() error
	Abort() error
}

// OutputSink opens a writer for a track. playlist is nil for tracks downloaded outside a playlist.
//
// Open failures wrapping [shared.ErrStorageUnavailable] abort the run; any other failure skips the track.
type OutputSink interface {
	Open(track models.Track, playlist *models.Playlist) (TrackWriter, error)
}

// TrackResult is the outcome of one attempted track.
type TrackResult struct {
	Track    models.Track
	Playlist *models.PlaylistSummary
	Bytes    int64
	Err      error
}

// DownloadReport accumulates the outcome of download runs.
type DownloadReport struct {
	Attempted  int
	Downloaded []TrackResult
	Skipped    []TrackResult
	Bytes      int64
}

func (r *DownloadReport) add(res TrackResult) {
	r.Attempted++
	if res.Err != nil {
		r.Skipped = append(r.Skipped, res)
		return
	}
	r.Downloaded = append(r.Downloaded, res)
	r.Bytes += res.Bytes
}

// Failed reports the number of skipped tracks.
func (r *DownloadReport) Failed() int {
	return len(r.Skipped)
}

// DownloadTracks downloads the first limit tracks (all of them when limit < 0) as a flat run.
//
// Per-track failures are reported with [ItemError] and recorded in the report; they never fail the run.
// The returned error is fatal: rejected credentials, unavailable storage or cancellation.
func (e *ArchiveEngine) DownloadTracks(ctx context.Context, tracks []models.Track, limit int, sink OutputSink, h EventHandler) (*DownloadReport, error) {
	report := &DownloadReport{}
	err := e.downloadRun(ctx, PhaseTrackAudio, tracks, nil, limit, sink, orNop(h), report)
	return report, err
}

// DownloadPlaylists downloads each playlist's tracks as an inner run bracketed by [GroupStart] and [GroupDone].
// limit applies to each playlist separately.
func (e *ArchiveEngine) DownloadPlaylists(ctx context.Context, playlists []models.Playlist, limit int, sink OutputSink, h EventHandler) (*DownloadReport, error) {
	h = orNop(h)
	report := &DownloadReport{}

	for i := range playlists {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		pl := &playlists[i]
		h.Handle(Event{Kind: GroupStart, Phase: PhasePlaylistAudio, Playlist: pl})
		if err := e.downloadRun(ctx, PhasePlaylistAudio, pl.Tracks, pl, limit, sink, h, report); err != nil {
			return report, err
		}
		h.Handle(Event{Kind: GroupDone, Phase: PhasePlaylistAudio, Playlist: pl})
	}
	return report, nil
}

func truncate(tracks []models.Track, limit int) []models.Track {
	if limit < 0 || limit >= len(tracks) {
		return tracks
	}
	return tracks[:limit]
}

func (e *ArchiveEngine) downloadRun(
	ctx context.Context,
	phase Phase,
	tracks []models.Track,
	pl *models.Playlist,
	limit int,
	sink OutputSink,
	h EventHandler,
	report *DownloadReport,
) error {
	if sink == nil {
		return fmt.Errorf("%w: no output sink", shared.ErrStorageUnavailable)
	}

	selected := truncate(tracks, limit)
	h.Handle(Event{Kind: BatchSize, Phase: phase, Count: len(selected), Playlist: pl})

	if e.opts.Workers > 1 {
		return e.downloadPool(ctx, phase, selected, pl, sink, h, report)
	}

	for i := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, fatal := e.downloadOne(ctx, phase, selected[i], pl, sink, h)
		report.add(res)
		if fatal != nil {
			return fatal
		}

		if i < len(selected)-1 {
			if err := wait(ctx, e.opts.Pacing); err != nil {
				return err
			}
		}
	}
	return nil
}

// downloadPool runs the same per-track steps on a bounded set of workers. A token bucket with one token
// per pacing interval replaces the sleep, and a mutex serializes events and report updates.
func (e *ArchiveEngine) downloadPool(
	ctx context.Context,
	phase Phase,
	tracks []models.Track,
	pl *models.Playlist,
	sink OutputSink,
	h EventHandler,
	report *DownloadReport,
) error {
	limit := rate.Inf
	if e.opts.Pacing > 0 {
		limit = rate.Every(e.opts.Pacing)
	}
	limiter := rate.NewLimiter(limit, 1)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var mu sync.Mutex
	locked := HandlerFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		h.Handle(ev)
	})

	jobs := make(chan models.Track)
	var wg sync.WaitGroup
	for range min(e.opts.Workers, len(tracks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range jobs {
				res, fatal := e.downloadOne(ctx, phase, track, pl, sink, locked)
				mu.Lock()
				report.add(res)
				mu.Unlock()
				if fatal != nil {
					cancel(fatal)
				}
			}
		}()
	}

feed:
	for _, track := range tracks {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		select {
		case jobs <- track:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return context.Cause(ctx)
}

// downloadOne attempts a single track. A non-nil second return aborts the run.
func (e *ArchiveEngine) downloadOne(
	ctx context.Context,
	phase Phase,
	track models.Track,
	pl *models.Playlist,
	sink OutputSink,
	h EventHandler,
) (TrackResult, error) {
	res := TrackResult{Track: track}
	if pl != nil {
		s := pl.Summary()
		res.Playlist = &s
	}

	h.Handle(Event{Kind: ItemStart, Phase: phase, Track: &track, Playlist: pl})

	pause := func(attempt int) {
		h.Handle(Event{Kind: RetryPause, Phase: phase, Track: &track, Playlist: pl, Delay: e.opts.Retry.Delay, Attempt: attempt})
	}
	n, err := withRetry(ctx, e.opts.Retry, pause, func() (int64, error) {
		return e.transfer(ctx, track, pl, sink)
	})
	if err != nil {
		res.Err = err
		if isFatalDownload(err) {
			return res, err
		}
		h.Handle(Event{Kind: ItemError, Phase: phase, Track: &track, Playlist: pl, Err: err})
		return res, nil
	}

	res.Bytes = n
	h.Handle(Event{Kind: ItemDone, Phase: phase, Track: &track, Playlist: pl, Count: int(n)})
	return res, nil
}

// isFatalDownload reports whether err ends the whole run. Cancellation is excluded: a copy cut short
// by cancellation is a track failure, and the next boundary check ends the run.
func isFatalDownload(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return shared.IsFatal(err)
}

// transfer opens the stream, copies it into a fresh writer and commits it.
// Read failures are transient; write and commit failures are not.
func (e *ArchiveEngine) transfer(ctx context.Context, track models.Track, pl *models.Playlist, sink OutputSink) (int64, error) {
	body, err := e.transport.OpenMediaStream(ctx, track)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	w, err := sink.Open(track, pl)
	if err != nil {
		return 0, fmt.Errorf("open output for %s: %w", track, err)
	}

	src := &streamReader{ctx: ctx, r: body}
	n, err := io.Copy(w, src)
	if err != nil {
		w.Abort()
		switch {
		case ctx.Err() != nil:
			return n, fmt.Errorf("download of %s interrupted: %w", track, ctx.Err())
		case src.err != nil && !shared.IsTransient(src.err):
			return n, fmt.Errorf("%w: stream for %s failed after %d bytes: %w", shared.ErrTransient, track, n, src.err)
		case src.err != nil:
			return n, src.err
		default:
			return n, fmt.Errorf("write %s: %w", track, err)
		}
	}

	if err := w.Commit(); err != nil {
		return n, fmt.Errorf("commit %s: %w", track, err)
	}
	return n, nil
}

// streamReader stops at cancellation and remembers read-side failures so they can be told apart
// from write failures after [io.Copy] returns.
type streamReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (s *streamReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
