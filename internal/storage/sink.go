// package storage lays out archived audio on disk
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/desertthunder/zester/internal/tasks"
)

const (
	LikesDir     = "likes"
	PlaylistsDir = "playlists"

	// maxNameBytes keeps names well under the 255 byte limit common to filesystems.
	maxNameBytes = 160
)

// Recorder is notified of every committed file. Failures are logged and never fail a download.
type Recorder interface {
	Record(ctx context.Context, track *models.ArchivedTrack) error
}

// FileSink implements [tasks.OutputSink] on the local filesystem:
//
//	<root>/likes/<artist - title [id]>.<ext>
//	<root>/playlists/<title [id]>/<artist - title [id]>.<ext>
type FileSink struct {
	root     string
	recorder Recorder
	logger   *log.Logger
}

// NewFileSink creates root if needed. recorder may be nil.
func NewFileSink(root string, recorder Recorder) (*FileSink, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: output directory not set", shared.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}
	return &FileSink{root: root, recorder: recorder, logger: log.Default()}, nil
}

// SetLogger sets where recorder failures are reported.
func (s *FileSink) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Root returns the archive directory.
func (s *FileSink) Root() string {
	return s.root
}

// PathFor returns where track is stored, inside playlist's directory when playlist is not nil.
func (s *FileSink) PathFor(track models.Track, playlist *models.Playlist) string {
	ext := "mp3"
	if tc, ok := track.PreferredTranscoding(); ok {
		ext = tc.Extension()
	}
	name := fmt.Sprintf("%s [%d]", Sanitize(track.String()), track.ID)

	if playlist == nil {
		return filepath.Join(s.root, LikesDir, name+"."+ext)
	}
	dir := fmt.Sprintf("%s [%d]", Sanitize(playlist.Title), playlist.ID)
	return filepath.Join(s.root, PlaylistsDir, dir, name+"."+ext)
}

// Open starts an atomic write for track. A missing archive root is reported as
// [shared.ErrStorageUnavailable]; other failures only concern this track.
func (s *FileSink) Open(track models.Track, playlist *models.Playlist) (tasks.TrackWriter, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	aw, err := NewAtomicWriter(s.PathFor(track, playlist))
	if err != nil {
		return nil, err
	}
	return &trackWriter{AtomicWriter: aw, sink: s, track: track, playlist: playlist}, nil
}

type trackWriter struct {
	*AtomicWriter
	sink     *FileSink
	track    models.Track
	playlist *models.Playlist
}

func (w *trackWriter) Commit() error {
	if err := w.AtomicWriter.Commit(); err != nil {
		return err
	}

	if w.sink.recorder != nil {
		var playlistID int64
		if w.playlist != nil {
			playlistID = w.playlist.ID
		}
		record := models.NewArchivedTrack(w.track, playlistID, w.Path(), w.Written())
		if err := w.sink.recorder.Record(context.Background(), record); err != nil {
			w.sink.logger.Warn("failed to record archived track", "track", w.track.ID, "path", w.Path(), "error", err)
		}
	}
	return nil
}

// Sanitize turns a title into a portable file name component.
func Sanitize(name string) string {
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !space && b.Len() > 0 {
				b.WriteRune(' ')
			}
			space = true
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			r = '_'
		}
		space = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), " .")
	for len(out) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	out = strings.TrimRight(out, " .")
	if out == "" {
		return "untitled"
	}
	return out
}
