package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/services"
	"github.com/desertthunder/zester/internal/shared"
	tu "github.com/desertthunder/zester/internal/testing"
)

func mediaFor(tracks ...models.Track) map[int64][]byte {
	out := make(map[int64][]byte, len(tracks))
	for _, tr := range tracks {
		out[tr.ID] = audio(tr.ID)
	}
	return out
}

func TestArchiveEngine_DownloadTracks(t *testing.T) {
	t1, t2, t3 := mkTrack(1, "one"), mkTrack(2, "two"), mkTrack(3, "three")
	all := []models.Track{t1, t2, t3}

	t.Run("limit truncates before downloading", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(all...)}
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, 2, newMemSink(), rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}

		batch := rec.of(BatchSize)
		if len(batch) != 1 || batch[0].Count != 2 || batch[0].Name() != "NumTracksToDownload" {
			t.Errorf("unexpected batch events %+v", batch)
		}
		if !slices.Equal(m.OpenCalls, []int64{1, 2}) {
			t.Errorf("opened %v, want [1 2]", m.OpenCalls)
		}
		if report.Attempted != 2 {
			t.Errorf("attempted = %d, want 2", report.Attempted)
		}
	})

	t.Run("start events equal min of limit and input", func(t *testing.T) {
		for _, limit := range []int{-1, 0, 1, 3, 5} {
			stubWait(t)
			m := &tu.MockTransport{Media: mediaFor(t1), MediaFail: map[int64]error{2: shared.ErrNoPlayableMedia}}
			rec := &recorder{}

			if _, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, limit, newMemSink(), rec); err != nil {
				t.Fatalf("limit %d: DownloadTracks() error = %v", limit, err)
			}

			want := len(all)
			if limit >= 0 {
				want = min(limit, len(all))
			}
			if got := rec.count(ItemStart); got != want {
				t.Errorf("limit %d: %d start events, want %d", limit, got, want)
			}
		}
	})

	t.Run("failed track does not disturb the others", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{
			Media:     mediaFor(all...),
			MediaFail: map[int64]error{2: fmt.Errorf("%w: gone", shared.ErrTrackNotFound)},
		}
		sink := newMemSink()
		previous := []byte("already archived")
		sink.files[99] = previous
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, -1, sink, rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}

		for _, id := range []int64{1, 3} {
			got, ok := sink.file(id)
			if !ok || !bytes.Equal(got, audio(id)) {
				t.Errorf("track %d not written byte-for-byte", id)
			}
		}
		if _, ok := sink.file(2); ok {
			t.Error("failed track should not be committed")
		}
		if got, _ := sink.file(99); !bytes.Equal(got, previous) {
			t.Error("unrelated file was modified")
		}

		want := []string{
			"NumTracksToDownload 3",
			"StartTrackDownload one", "FinishTrackDownload one",
			"StartTrackDownload two", "TrackDownloadError two",
			"StartTrackDownload three", "FinishTrackDownload three",
		}
		if !slices.Equal(rec.trace(), want) {
			t.Errorf("trace = %v, want %v", rec.trace(), want)
		}

		if report.Attempted != 3 || len(report.Downloaded) != 2 || report.Failed() != 1 {
			t.Errorf("unexpected report %+v", report)
		}
		if !errors.Is(report.Skipped[0].Err, shared.ErrTrackNotFound) {
			t.Errorf("skip reason = %v", report.Skipped[0].Err)
		}
		if report.Bytes != int64(len(audio(1))+len(audio(3))) {
			t.Errorf("bytes = %d", report.Bytes)
		}
	})

	t.Run("pacing between tracks", func(t *testing.T) {
		waits := stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(all...)}

		if _, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, -1, newMemSink(), nil); err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if n := waits.count(testOpts.Pacing); n != 2 {
			t.Errorf("expected 2 pacing waits, got %d", n)
		}
	})

	t.Run("transient open is retried on the same track", func(t *testing.T) {
		waits := stubWait(t)
		m := &tu.MockTransport{
			Media:     mediaFor(t1),
			MediaErrs: map[int64][]error{1: {transientErr()}},
		}
		sink := newMemSink()
		rec := &recorder{}

		if _, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), []models.Track{t1}, -1, sink, rec); err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if !slices.Equal(m.OpenCalls, []int64{1, 1}) {
			t.Errorf("open calls = %v", m.OpenCalls)
		}
		if got, _ := sink.file(1); !bytes.Equal(got, audio(1)) {
			t.Error("track not written after retry")
		}
		pause := rec.of(RetryPause)
		if len(pause) != 1 || pause[0].Track == nil || pause[0].Track.ID != 1 {
			t.Errorf("unexpected pauses %+v", pause)
		}
		if waits.count(testOpts.Retry.Delay) != 1 {
			t.Errorf("expected one retry wait")
		}
		if rec.count(ItemStart) != 1 {
			t.Errorf("retry should not emit another start event")
		}
	})

	t.Run("zero retry policy never retries", func(t *testing.T) {
		waits := stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(t1), MediaFail: map[int64]error{1: transientErr()}}
		rec := &recorder{}

		report, err := NewArchiveEngine(m, Options{}).DownloadTracks(context.Background(), []models.Track{t1}, -1, newMemSink(), rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if !slices.Equal(m.OpenCalls, []int64{1}) {
			t.Errorf("open calls = %v, want [1]", m.OpenCalls)
		}
		if rec.count(RetryPause) != 0 || len(waits.waits) != 0 {
			t.Errorf("expected no retry pauses or waits, got %d pauses and %v", rec.count(RetryPause), waits.waits)
		}
		errs := rec.of(ItemError)
		if len(errs) != 1 || !errors.Is(errs[0].Err, shared.ErrRetriesExhausted) {
			t.Errorf("unexpected error events %+v", errs)
		}
		if report.Failed() != 1 {
			t.Errorf("failed = %d, want 1", report.Failed())
		}
	})

	t.Run("interrupted stream is retried then skipped", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{
			Media:        mediaFor(t1, t2),
			MediaReadErr: map[int64]error{1: errors.New("connection reset by peer")},
		}
		sink := newMemSink()
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), []models.Track{t1, t2}, -1, sink, rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if !errors.Is(report.Skipped[0].Err, shared.ErrRetriesExhausted) {
			t.Errorf("expected ErrRetriesExhausted, got %v", report.Skipped[0].Err)
		}
		if rec.count(RetryPause) != testOpts.Retry.MaxRetries {
			t.Errorf("expected %d pauses, got %d", testOpts.Retry.MaxRetries, rec.count(RetryPause))
		}
		if sink.aborted != testOpts.Retry.MaxRetries+1 {
			t.Errorf("every partial writer should be aborted, got %d", sink.aborted)
		}
		if _, ok := sink.file(1); ok {
			t.Error("partial track was committed")
		}
		if _, ok := sink.file(2); !ok {
			t.Error("next track should still download")
		}
	})

	t.Run("sink write failure skips the track", func(t *testing.T) {
		stubWait(t)
		sink := newMemSink()
		sink.writeErr[1] = errors.New("disk quota exceeded")
		rec := &recorder{}

		report, err := NewArchiveEngine(&tu.MockTransport{Media: mediaFor(all...)}, testOpts).
			DownloadTracks(context.Background(), all, -1, sink, rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if report.Failed() != 1 || len(report.Downloaded) != 2 {
			t.Errorf("unexpected report %+v", report)
		}
		if rec.count(RetryPause) != 0 {
			t.Error("write failures should not be retried")
		}
	})

	t.Run("unavailable storage is fatal", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(all...)}
		sink := newMemSink()
		sink.openErr[1] = fmt.Errorf("%w: read-only file system", shared.ErrStorageUnavailable)
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, -1, sink, rec)
		if !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
		if !slices.Equal(m.OpenCalls, []int64{1}) {
			t.Errorf("run should stop after the fatal track, opened %v", m.OpenCalls)
		}
		if report.Attempted != 1 || rec.count(ItemError) != 0 {
			t.Errorf("fatal errors are returned, not reported per item: %+v", report)
		}
	})

	t.Run("rejected credentials are fatal", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(all...), MediaFail: map[int64]error{2: errAuth}}

		_, err := NewArchiveEngine(m, testOpts).DownloadTracks(context.Background(), all, -1, newMemSink(), nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if !slices.Equal(m.OpenCalls, []int64{1, 2}) {
			t.Errorf("opened %v", m.OpenCalls)
		}
	})

	t.Run("cancellation mid-copy fails only that track", func(t *testing.T) {
		stubWait(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sink := newMemSink()
		sink.onWrite = func(id int64) {
			if id == 2 {
				cancel()
			}
		}
		m := &tu.MockTransport{Media: mediaFor(all...)}
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadTracks(ctx, all, -1, sink, rec)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if got, _ := sink.file(1); !bytes.Equal(got, audio(1)) {
			t.Error("completed track was disturbed")
		}
		if _, ok := sink.file(2); ok {
			t.Error("interrupted track was committed")
		}
		if slices.Contains(m.OpenCalls, 3) {
			t.Error("no track should start after cancellation")
		}
		errs := rec.of(ItemError)
		if len(errs) != 1 || errs[0].Track.ID != 2 || !errors.Is(errs[0].Err, context.Canceled) {
			t.Errorf("unexpected error events %+v", errs)
		}
		if report.Attempted != 2 {
			t.Errorf("attempted = %d, want 2", report.Attempted)
		}
	})

	t.Run("stream longer than the api timeout completes", func(t *testing.T) {
		stubWait(t)
		chunk := []byte(strings.Repeat("x", 1024))
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/media/5/stream/progressive":
				fmt.Fprintf(w, `{"url":"%s/cdn/5.mp3"}`, server.URL)
			case "/cdn/5.mp3":
				for range 6 {
					w.Write(chunk)
					w.(http.Flusher).Flush()
					time.Sleep(100 * time.Millisecond)
				}
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(server.Close)

		sc, err := services.NewSoundCloudService(
			models.Credentials{OAuthToken: "tok", ClientID: "cid"},
			services.SoundCloudOptions{BaseURL: server.URL, Timeout: 300 * time.Millisecond},
		)
		if err != nil {
			t.Fatalf("NewSoundCloudService() error = %v", err)
		}

		mix := models.Track{ID: 5, Title: "long mix", Media: &models.Media{Transcodings: []models.Transcoding{{
			URL:    server.URL + "/media/5/stream/progressive",
			Format: models.Format{Protocol: "progressive", MimeType: "audio/mpeg"},
		}}}}
		sink := newMemSink()
		rec := &recorder{}

		opts := Options{Retry: RetryPolicy{Delay: time.Millisecond, MaxRetries: 2}}
		report, err := NewArchiveEngine(sc, opts).DownloadTracks(context.Background(), []models.Track{mix}, -1, sink, rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if len(report.Downloaded) != 1 || report.Failed() != 0 {
			t.Errorf("downloaded %d, failed %d, want 1 and 0", len(report.Downloaded), report.Failed())
		}
		if got := rec.count(RetryPause); got != 0 {
			t.Errorf("%d retry pauses, want 0", got)
		}
		if got := len(sink.files[5]); got != 6*1024 {
			t.Errorf("archived %d bytes, want %d", got, 6*1024)
		}
	})

	t.Run("missing sink", func(t *testing.T) {
		_, err := NewArchiveEngine(&tu.MockTransport{}, testOpts).DownloadTracks(context.Background(), all, -1, nil, nil)
		if !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestArchiveEngine_DownloadPlaylists(t *testing.T) {
	a := models.Playlist{ID: 10, Title: "A", Tracks: []models.Track{mkTrack(1, "one"), mkTrack(2, "two"), mkTrack(3, "three")}}
	b := models.Playlist{ID: 11, Title: "B", Tracks: []models.Track{mkTrack(4, "four")}}
	empty := models.Playlist{ID: 12, Title: "E", Tracks: []models.Track{}}
	media := mediaFor(append(append([]models.Track{}, a.Tracks...), b.Tracks...)...)

	t.Run("groups wrap each inner run", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: media}
		rec := &recorder{}

		report, err := NewArchiveEngine(m, testOpts).DownloadPlaylists(context.Background(), []models.Playlist{a, empty, b}, 2, newMemSink(), rec)
		if err != nil {
			t.Fatalf("DownloadPlaylists() error = %v", err)
		}

		want := []string{
			"StartPlaylistDownload A",
			"NumTracksToDownload 2",
			"StartTrackDownload one", "FinishTrackDownload one",
			"StartTrackDownload two", "FinishTrackDownload two",
			"FinishPlaylistDownload A",
			"StartPlaylistDownload E",
			"NumTracksToDownload 0",
			"FinishPlaylistDownload E",
			"StartPlaylistDownload B",
			"NumTracksToDownload 1",
			"StartTrackDownload four", "FinishTrackDownload four",
			"FinishPlaylistDownload B",
		}
		if !slices.Equal(rec.trace(), want) {
			t.Errorf("trace = %v\nwant %v", rec.trace(), want)
		}

		for _, ev := range rec.events {
			if ev.Phase != PhasePlaylistAudio {
				t.Errorf("event %s in phase %s", ev.Name(), ev.Phase)
			}
			if ev.Kind == ItemStart || ev.Kind == ItemDone {
				if ev.Playlist == nil {
					t.Errorf("%s for %s has no playlist", ev.Name(), ev.Subject())
				}
			}
		}

		if report.Attempted != 3 {
			t.Errorf("attempted = %d, want 3", report.Attempted)
		}
		if pl := report.Downloaded[2].Playlist; pl == nil || pl.ID != 11 {
			t.Errorf("result should carry its playlist, got %+v", pl)
		}
	})

	t.Run("fatal error stops remaining playlists", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: media, MediaFail: map[int64]error{1: errAuth}}
		rec := &recorder{}

		_, err := NewArchiveEngine(m, testOpts).DownloadPlaylists(context.Background(), []models.Playlist{a, b}, -1, newMemSink(), rec)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if rec.count(GroupDone) != 0 || rec.count(GroupStart) != 1 {
			t.Errorf("unexpected groups: %v", rec.trace())
		}
	})
}

func TestArchiveEngine_DownloadWorkers(t *testing.T) {
	var tracks []models.Track
	for id := int64(1); id <= 12; id++ {
		tracks = append(tracks, mkTrack(id, fmt.Sprintf("t%d", id)))
	}
	opts := Options{Retry: testOpts.Retry, Workers: 3}

	t.Run("same counts as sequential", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(tracks...), MediaFail: map[int64]error{5: shared.ErrNoPlayableMedia}}
		sink := newMemSink()
		rec := &recorder{}

		report, err := NewArchiveEngine(m, opts).DownloadTracks(context.Background(), tracks, -1, sink, rec)
		if err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if rec.count(ItemStart) != 12 || rec.count(ItemDone) != 11 || rec.count(ItemError) != 1 {
			t.Errorf("start=%d done=%d error=%d", rec.count(ItemStart), rec.count(ItemDone), rec.count(ItemError))
		}
		if report.Attempted != 12 || len(report.Downloaded) != 11 || report.Failed() != 1 {
			t.Errorf("unexpected report counts %d/%d/%d", report.Attempted, len(report.Downloaded), report.Failed())
		}
		if m.MaxInFlight > 3 {
			t.Errorf("%d streams in flight, want at most 3", m.MaxInFlight)
		}
		for _, tr := range tracks {
			if tr.ID == 5 {
				continue
			}
			if got, _ := sink.file(tr.ID); !bytes.Equal(got, audio(tr.ID)) {
				t.Errorf("track %d not written", tr.ID)
			}
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		stubWait(t)
		m := &tu.MockTransport{Media: mediaFor(tracks...)}
		rec := &recorder{}

		if _, err := NewArchiveEngine(m, opts).DownloadTracks(context.Background(), tracks, 4, newMemSink(), rec); err != nil {
			t.Fatalf("DownloadTracks() error = %v", err)
		}
		if rec.count(ItemStart) != 4 || len(m.OpenCalls) != 4 {
			t.Errorf("start=%d opened=%v", rec.count(ItemStart), m.OpenCalls)
		}
	})

	t.Run("fatal error stops the pool", func(t *testing.T) {
		stubWait(t)
		sink := newMemSink()
		sink.openErr[1] = fmt.Errorf("%w: disk gone", shared.ErrStorageUnavailable)
		m := &tu.MockTransport{Media: mediaFor(tracks...)}

		_, err := NewArchiveEngine(m, Options{Retry: testOpts.Retry, Workers: 2}).DownloadTracks(context.Background(), tracks, -1, sink, nil)
		if !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}
