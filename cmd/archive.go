package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

type runView struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type statusView struct {
	Files     int       `json:"files"`
	Tracks    int       `json:"tracks"`
	Playlists int       `json:"playlists"`
	Bytes     int64     `json:"bytes"`
	Size      string    `json:"size"`
	Runs      []runView `json:"runs"`
}

func newRunView(run *models.ArchiveRun) runView {
	return runView{
		ID:         run.ID(),
		Kind:       string(run.Kind()),
		Status:     string(run.Status()),
		Total:      run.ItemsTotal(),
		Done:       run.ItemsDone(),
		Failed:     run.ItemsFailed(),
		Error:      run.ErrorMessage(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
	}
}

// ArchiveStatus prints what the archive index holds and the most recent runs.
func (r *Runner) ArchiveStatus(ctx context.Context, cmd *cli.Command) error {
	if !r.index() {
		return fmt.Errorf("%w: archive index %s could not be opened", shared.ErrStorageUnavailable, r.config.Database.Path)
	}

	stats, err := r.tracks.Stats()
	if err != nil {
		return err
	}
	runs, err := r.runs.List(map[string]any{"limit": cmd.Int("runs")})
	if err != nil {
		return err
	}

	view := statusView{
		Files:     stats.Files,
		Tracks:    stats.Tracks,
		Playlists: stats.Playlists,
		Bytes:     stats.Bytes,
		Size:      humanize.Bytes(uint64(stats.Bytes)),
		Runs:      make([]runView, 0, len(runs)),
	}
	for _, run := range runs {
		view.Runs = append(view.Runs, newRunView(run))
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	r.writePlainHeader("Archive")
	r.writePlain("Files:     %d (%s)\n", view.Files, view.Size)
	r.writePlain("Tracks:    %d\n", view.Tracks)
	r.writePlain("Playlists: %d\n", view.Playlists)

	r.writePlainln("Recent runs")
	if len(view.Runs) == 0 {
		r.writePlain("  none\n")
		return nil
	}
	for _, run := range view.Runs {
		r.writePlain("  %-18s %-9s %d/%d done, %d failed, %s\n",
			run.Kind, run.Status, run.Done, run.Total, run.Failed, humanize.Time(run.StartedAt))
		if run.Error != "" {
			r.writePlain("    error: %s\n", run.Error)
		}
	}
	return nil
}
