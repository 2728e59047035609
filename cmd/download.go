package main

import (
	"context"

	"github.com/desertthunder/zester/internal/formatter"
	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/storage"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DownloadLikes streams audio for every track in likes.json into <output_dir>/likes.
func (r *Runner) DownloadLikes(ctx context.Context, cmd *cli.Command) error {
	likes, err := formatter.ReadLikes(r.config.Archive.OutputDir)
	if err != nil {
		return err
	}

	engine, err := r.engine(cmd.Int("workers"))
	if err != nil {
		return err
	}
	return r.downloadLikes(ctx, engine, likes, r.limit(cmd), cmd.Bool("tui"))
}

// DownloadPlaylists streams audio for every playlist in playlists.json into <output_dir>/playlists.
func (r *Runner) DownloadPlaylists(ctx context.Context, cmd *cli.Command) error {
	playlists, err := formatter.ReadPlaylists(r.config.Archive.OutputDir)
	if err != nil {
		return err
	}

	engine, err := r.engine(cmd.Int("workers"))
	if err != nil {
		return err
	}
	return r.downloadPlaylists(ctx, engine, playlists, r.limit(cmd), cmd.Bool("tui"))
}

// Run fetches likes and playlists, then downloads both.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(cmd.Int("workers"))
	if err != nil {
		return err
	}
	useTUI := cmd.Bool("tui")
	limit := r.limit(cmd)

	likes, err := r.fetchLikes(ctx, engine, useTUI)
	if err != nil {
		return err
	}
	playlists, err := r.fetchPlaylists(ctx, engine, useTUI)
	if err != nil {
		return err
	}

	if err := r.downloadLikes(ctx, engine, likes, limit, useTUI); err != nil {
		return err
	}
	return r.downloadPlaylists(ctx, engine, playlists, limit, useTUI)
}

// limit resolves --limit against archive.limit. Anything below zero means no limit.
func (r *Runner) limit(cmd *cli.Command) int {
	if cmd.IsSet("limit") {
		return cmd.Int("limit")
	}
	return r.config.Archive.Limit
}

// sink builds the file sink, recording into the archive index when it is available.
func (r *Runner) sink() (*storage.FileSink, error) {
	var recorder storage.Recorder
	if rec := r.recorder(); rec != nil {
		recorder = rec
	}
	return storage.NewFileSink(r.config.Archive.OutputDir, recorder)
}

func (r *Runner) downloadLikes(ctx context.Context, engine *tasks.ArchiveEngine, likes []models.Track, limit int, useTUI bool) error {
	sink, err := r.sink()
	if err != nil {
		return err
	}

	expected := len(likes)
	if limit >= 0 && limit < expected {
		expected = limit
	}

	return r.download(ctx, models.RunDownloadLikes, "Downloading likes", expected, useTUI,
		func(ctx context.Context, h tasks.EventHandler) (*tasks.DownloadReport, error) {
			sink.SetLogger(r.logger)
			return engine.DownloadTracks(ctx, likes, limit, sink, h)
		})
}

func (r *Runner) downloadPlaylists(ctx context.Context, engine *tasks.ArchiveEngine, playlists []models.Playlist, limit int, useTUI bool) error {
	sink, err := r.sink()
	if err != nil {
		return err
	}

	expected := 0
	for _, pl := range playlists {
		n := len(pl.Tracks)
		if limit >= 0 && limit < n {
			n = limit
		}
		expected += n
	}

	return r.download(ctx, models.RunDownloadPlaylists, "Downloading playlists", expected, useTUI,
		func(ctx context.Context, h tasks.EventHandler) (*tasks.DownloadReport, error) {
			sink.SetLogger(r.logger)
			return engine.DownloadPlaylists(ctx, playlists, limit, sink, h)
		})
}

// download runs a download phase, prints its summary and writes report.json, including after an abort.
func (r *Runner) download(
	ctx context.Context,
	kind models.RunKind,
	title string,
	expected int,
	useTUI bool,
	fn func(context.Context, tasks.EventHandler) (*tasks.DownloadReport, error),
) error {
	var report *tasks.DownloadReport

	err := r.record(kind, func() (runCounts, error) {
		err := r.execute(ctx, useTUI, title, expected, func(ctx context.Context, h tasks.EventHandler) error {
			var err error
			report, err = fn(ctx, h)
			return err
		})
		if report == nil {
			return runCounts{}, err
		}
		return runCounts{total: report.Attempted, done: len(report.Downloaded), failed: report.Failed()}, err
	})

	if report != nil {
		r.writePlain("%s", formatter.Summary(report))
		path, werr := formatter.WriteReport(r.config.Archive.OutputDir, report)
		if werr != nil {
			r.logger.Warn("failed to write report", "error", werr)
		} else {
			r.logger.Info("report written", "path", path)
		}
	}
	return err
}
