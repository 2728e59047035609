package ui

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/dustin/go-humanize"
)

var _ tasks.EventHandler = (*LogHandler)(nil)

// LogHandler renders events as structured log lines, for runs without the TUI.
type LogHandler struct {
	logger *log.Logger
}

// NewLogHandler creates a LogHandler writing to logger.
func NewLogHandler(logger *log.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(e tasks.Event) {
	l := h.logger.With("phase", e.Phase, "event", e.Name())
	subject := e.Subject()

	switch e.Kind {
	case tasks.Progress:
		l.Info("fetched page", "items", e.Count)
	case tasks.BatchSize:
		l.Info("tracks to download", "count", e.Count)
	case tasks.RetryPause:
		l.Warn("server error, pausing", "delay", e.Delay, "attempt", e.Attempt, "item", subject)
	case tasks.ItemStart:
		l.Debug("starting", "item", subject)
	case tasks.ItemDone:
		if e.Track != nil {
			l.Info("downloaded", "track", subject, "size", humanize.Bytes(uint64(max(e.Count, 0))))
		} else if e.Playlist != nil {
			l.Info("fetched playlist", "playlist", subject, "tracks", len(e.Playlist.Tracks))
		} else {
			l.Info("done", "item", subject)
		}
	case tasks.ItemError:
		if e.Stage != tasks.StageNone {
			l.Warn("skipped", "item", subject, "stage", e.Stage, "err", e.Err)
		} else {
			l.Warn("skipped", "item", subject, "err", e.Err)
		}
	case tasks.GroupStart:
		l.Info("downloading playlist", "playlist", subject)
	case tasks.GroupDone:
		l.Info("finished playlist", "playlist", subject)
	}
}
