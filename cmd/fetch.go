package main

import (
	"context"

	"github.com/desertthunder/zester/internal/formatter"
	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/urfave/cli/v3"
)

// FetchLikes crawls every liked track into likes.json, optionally also as CSV.
func (r *Runner) FetchLikes(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(0)
	if err != nil {
		return err
	}

	likes, err := r.fetchLikes(ctx, engine, cmd.Bool("tui"))
	if err != nil {
		return err
	}

	if path := cmd.String("csv"); path != "" {
		written, err := formatter.WriteCSVExport(likes, path)
		if err != nil {
			return err
		}
		r.writePlain("✓ CSV listing written to %s\n", written)
	}
	return nil
}

// FetchPlaylists crawls and hydrates every playlist into playlists.json.
func (r *Runner) FetchPlaylists(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(0)
	if err != nil {
		return err
	}

	_, err = r.fetchPlaylists(ctx, engine, cmd.Bool("tui"))
	return err
}

// FetchAll fetches likes, then playlists.
func (r *Runner) FetchAll(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(0)
	if err != nil {
		return err
	}

	if _, err := r.fetchLikes(ctx, engine, cmd.Bool("tui")); err != nil {
		return err
	}
	_, err = r.fetchPlaylists(ctx, engine, cmd.Bool("tui"))
	return err
}

func (r *Runner) fetchLikes(ctx context.Context, engine *tasks.ArchiveEngine, useTUI bool) ([]models.Track, error) {
	var likes models.Collection[models.Track]

	err := r.record(models.RunFetchLikes, func() (runCounts, error) {
		expected := 0
		if useTUI {
			if p := r.profile(ctx, engine); p != nil {
				expected = p.LikesCount
			}
		}

		err := r.execute(ctx, useTUI, "Fetching likes", expected, func(ctx context.Context, h tasks.EventHandler) error {
			var err error
			likes, err = engine.Likes(ctx, h)
			return err
		})
		return runCounts{total: len(likes), done: len(likes)}, err
	})
	if err != nil {
		return nil, err
	}

	path, err := formatter.WriteLikes(r.config.Archive.OutputDir, likes)
	if err != nil {
		return nil, err
	}
	r.logger.Info("likes saved", "count", len(likes), "path", path)
	r.writePlain("✓ %d liked tracks saved to %s\n", len(likes), path)
	return likes, nil
}

func (r *Runner) fetchPlaylists(ctx context.Context, engine *tasks.ArchiveEngine, useTUI bool) ([]models.Playlist, error) {
	var (
		playlists []models.Playlist
		failed    int
	)

	err := r.record(models.RunFetchPlaylists, func() (runCounts, error) {
		expected := 0
		if useTUI {
			if p := r.profile(ctx, engine); p != nil {
				expected = p.TotalPlaylistCount()
			}
		}

		err := r.execute(ctx, useTUI, "Fetching playlists", expected, func(ctx context.Context, h tasks.EventHandler) error {
			countFailures := tasks.HandlerFunc(func(e tasks.Event) {
				if e.Kind == tasks.ItemError {
					failed++
				}
			})

			var err error
			playlists, err = engine.Playlists(ctx, tasks.Multi(h, countFailures))
			return err
		})
		return runCounts{total: len(playlists) + failed, done: len(playlists), failed: failed}, err
	})
	if err != nil {
		return nil, err
	}

	path, err := formatter.WritePlaylists(r.config.Archive.OutputDir, playlists)
	if err != nil {
		return nil, err
	}
	r.logger.Info("playlists saved", "count", len(playlists), "skipped", failed, "path", path)
	r.writePlain("✓ %d playlists saved to %s\n", len(playlists), path)
	if failed > 0 {
		r.writePlain("  %d playlists could not be fetched; see the log for details\n", failed)
	}
	return playlists, nil
}

// profile fetches the account counts used to size the progress bar. Failures only cost the estimate.
func (r *Runner) profile(ctx context.Context, engine *tasks.ArchiveEngine) *models.Profile {
	p, err := engine.Profile(ctx, nil)
	if err != nil {
		r.logger.Debug("profile unavailable", "error", err)
		return nil
	}
	return p
}
