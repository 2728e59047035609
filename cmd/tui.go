package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/zester/internal/shared"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/desertthunder/zester/internal/ui"
)

// execute runs job, either behind the progress view or with its events written to the log.
func (r *Runner) execute(ctx context.Context, useTUI bool, title string, expected int, job ui.Job) error {
	if !useTUI {
		return job(ctx, ui.NewLogHandler(r.logger))
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())

	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	return ui.Run(ctx, title, expected, func(ctx context.Context, h tasks.EventHandler) error {
		return job(ctx, tasks.Multi(h, ui.NewLogHandler(fileLogger)))
	})
}
