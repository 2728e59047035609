package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/desertthunder/zester/internal/tasks"
	tu "github.com/desertthunder/zester/internal/testing"
)

type memRecorder struct {
	records []*models.ArchivedTrack
	err     error
}

func (m *memRecorder) Record(ctx context.Context, track *models.ArchivedTrack) error {
	m.records = append(m.records, track)
	return m.err
}

func tempFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && strings.HasSuffix(path, ".part") {
			found = append(found, path)
		}
		return nil
	})
	return found
}

func TestAtomicWriter(t *testing.T) {
	t.Run("commit replaces target", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "file.mp3")
		w, err := NewAtomicWriter(path)
		if err != nil {
			t.Fatalf("NewAtomicWriter() error = %v", err)
		}
		w.Write([]byte("hello "))
		w.Write([]byte("world"))

		if err := w.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if got := tu.MustReadFile(t, path); got != "hello world" {
			t.Errorf("content = %q", got)
		}
		if w.Written() != 11 {
			t.Errorf("Written() = %d, want 11", w.Written())
		}
		if err := w.Commit(); err == nil {
			t.Error("second Commit() should fail")
		}
	})

	t.Run("abort keeps previous content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "file.mp3")
		os.WriteFile(path, []byte("original"), 0644)

		w, err := NewAtomicWriter(path)
		if err != nil {
			t.Fatalf("NewAtomicWriter() error = %v", err)
		}
		w.Write([]byte("partial"))
		if err := w.Abort(); err != nil {
			t.Fatalf("Abort() error = %v", err)
		}

		if got := tu.MustReadFile(t, path); got != "original" {
			t.Errorf("content = %q, want original", got)
		}
		if leftovers := tempFiles(t, dir); len(leftovers) != 0 {
			t.Errorf("temp files left behind: %v", leftovers)
		}
		if err := w.Abort(); err != nil {
			t.Errorf("second Abort() should be a no-op, got %v", err)
		}
	})
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Artist - Song", "Artist - Song"},
		{"separators", "AC/DC: Back\\In*Black?", "AC_DC_ Back_In_Black_"},
		{"collapses whitespace", "  a \t\n b  ", "a b"},
		{"trailing dots", "song...", "song"},
		{"empty", "", "untitled"},
		{"only dots", "...", "untitled"},
		{"control chars", "a\x00b", "a_b"},
		{"unicode kept", "Sigur Rós – Hoppípolla", "Sigur Rós – Hoppípolla"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("long names are cut on a rune boundary", func(t *testing.T) {
		got := Sanitize(strings.Repeat("é", 200))
		if len(got) > maxNameBytes {
			t.Errorf("len = %d, want <= %d", len(got), maxNameBytes)
		}
		if !strings.HasPrefix(got, "é") || strings.ContainsRune(got, '�') {
			t.Errorf("name was cut mid-rune: %q", got)
		}
	})
}

func TestFileSink(t *testing.T) {
	song := models.Track{ID: 7, Title: "Song", User: &models.User{Username: "Artist"}}
	mix := &models.Playlist{ID: 3, Title: "Road/Trip"}

	t.Run("layout", func(t *testing.T) {
		sink, err := NewFileSink(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewFileSink() error = %v", err)
		}

		like := sink.PathFor(song, nil)
		if want := filepath.Join(sink.Root(), "likes", "Artist - Song [7].mp3"); like != want {
			t.Errorf("likes path = %s, want %s", like, want)
		}
		inPlaylist := sink.PathFor(song, mix)
		if want := filepath.Join(sink.Root(), "playlists", "Road_Trip [3]", "Artist - Song [7].mp3"); inPlaylist != want {
			t.Errorf("playlist path = %s, want %s", inPlaylist, want)
		}

		ogg := song
		ogg.Media = &models.Media{Transcodings: []models.Transcoding{{URL: "u", Format: models.Format{Protocol: "progressive", MimeType: "audio/ogg"}}}}
		if filepath.Ext(sink.PathFor(ogg, nil)) != ".ogg" {
			t.Errorf("extension should follow the transcoding, got %s", sink.PathFor(ogg, nil))
		}
	})

	t.Run("commit records the file", func(t *testing.T) {
		rec := &memRecorder{err: errors.New("index locked")}
		sink, _ := NewFileSink(t.TempDir(), rec)
		var logs bytes.Buffer
		sink.SetLogger(shared.NewLogger(&logs))

		w, err := sink.Open(song, mix)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		w.Write([]byte("audio"))
		if err := w.Commit(); err != nil {
			t.Fatalf("recorder failures must not fail the commit: %v", err)
		}

		if len(rec.records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(rec.records))
		}
		r := rec.records[0]
		if r.TrackID() != 7 || r.PlaylistID() != 3 || r.Bytes() != 5 || r.Path() != sink.PathFor(song, mix) {
			t.Errorf("unexpected record %+v", r)
		}
		if out := logs.String(); !strings.Contains(out, "failed to record archived track") || !strings.Contains(out, "index locked") {
			t.Errorf("expected recorder failure in the log, got %q", out)
		}
	})

	t.Run("missing root is storage unavailable", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "archive")
		sink, err := NewFileSink(root, nil)
		if err != nil {
			t.Fatalf("NewFileSink() error = %v", err)
		}
		os.RemoveAll(root)

		if _, err := sink.Open(song, nil); !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})

	t.Run("unusable root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		os.WriteFile(file, nil, 0644)

		if _, err := NewFileSink(filepath.Join(file, "archive"), nil); !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

// A re-run into an archive that already holds files must leave unrelated files intact and
// write the surviving tracks byte-for-byte, even when one track fails.
func TestFileSink_DownloadRerun(t *testing.T) {
	root := t.TempDir()
	sink, err := NewFileSink(root, nil)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}

	older := models.Track{ID: 99, Title: "older"}
	olderPath := sink.PathFor(older, nil)
	os.MkdirAll(filepath.Dir(olderPath), 0755)
	os.WriteFile(olderPath, []byte("kept"), 0644)

	tracks := []models.Track{{ID: 1, Title: "one"}, {ID: 2, Title: "two"}, {ID: 3, Title: "three"}}
	media := map[int64][]byte{
		1: bytes.Repeat([]byte("1"), 4096),
		2: []byte("never"),
		3: bytes.Repeat([]byte("3"), 70000),
	}
	m := &tu.MockTransport{Media: media, MediaFail: map[int64]error{2: shared.ErrTrackNotFound}}

	for run := range 2 {
		engine := tasks.NewArchiveEngine(m, tasks.Options{Retry: tasks.RetryPolicy{Delay: 0, MaxRetries: 1}})
		report, err := engine.DownloadTracks(context.Background(), tracks, -1, sink, nil)
		if err != nil {
			t.Fatalf("run %d: DownloadTracks() error = %v", run, err)
		}
		if report.Failed() != 1 {
			t.Errorf("run %d: expected 1 failure, got %d", run, report.Failed())
		}

		for _, id := range []int64{1, 3} {
			got, err := os.ReadFile(sink.PathFor(tracks[id-1], nil))
			if err != nil || !bytes.Equal(got, media[id]) {
				t.Errorf("run %d: track %d not written byte-for-byte", run, id)
			}
		}
		tu.AssertNoFile(t, sink.PathFor(tracks[1], nil))
		if got := tu.MustReadFile(t, olderPath); got != "kept" {
			t.Errorf("run %d: unrelated file changed to %q", run, got)
		}
		if leftovers := tempFiles(t, root); len(leftovers) != 0 {
			t.Errorf("run %d: temp files left behind: %v", run, leftovers)
		}
	}
}
