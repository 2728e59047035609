package tasks

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/services"
	"github.com/desertthunder/zester/internal/shared"
)

var testOpts = Options{
	Retry:  RetryPolicy{Delay: 3 * time.Second, MaxRetries: 3},
	Pacing: 500 * time.Millisecond,
}

func transientErr() error {
	return services.NewStatusError(503, "https://api.example.com/x?client_id=secret")
}

// stubWait replaces the package wait with a recorder that returns immediately.
func stubWait(t *testing.T) *waitLog {
	t.Helper()
	log := &waitLog{}
	orig := wait
	wait = func(ctx context.Context, d time.Duration) error {
		log.mu.Lock()
		log.waits = append(log.waits, d)
		log.mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() { wait = orig })
	return log
}

type waitLog struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitLog) count(d time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, got := range w.waits {
		if got == d {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) of(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// trace renders events as "Name subject" lines for order assertions.
func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		switch e.Kind {
		case Progress, BatchSize:
			out = append(out, fmt.Sprintf("%s %d", e.Name(), e.Count))
		case RetryPause:
			out = append(out, e.Name())
		default:
			out = append(out, fmt.Sprintf("%s %s", e.Name(), e.Subject()))
		}
	}
	return out
}

// memSink keeps committed tracks in memory keyed by track id.
type memSink struct {
	mu       sync.Mutex
	files    map[int64][]byte
	openErr  map[int64]error
	writeErr map[int64]error
	onWrite  func(id int64)
	aborted  int
}

func newMemSink() *memSink {
	return &memSink{files: map[int64][]byte{}, openErr: map[int64]error{}, writeErr: map[int64]error{}}
}

func (s *memSink) Open(track models.Track, playlist *models.Playlist) (TrackWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openErr[track.ID]; err != nil {
		return nil, err
	}
	return &memWriter{sink: s, id: track.ID}, nil
}

type memWriter struct {
	sink *memSink
	id   int64
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.sink.mu.Lock()
	err := w.sink.writeErr[w.id]
	hook := w.sink.onWrite
	w.sink.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if hook != nil {
		hook(w.id)
	}
	return w.buf.Write(p)
}

func (w *memWriter) Commit() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.files[w.id] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

func (w *memWriter) Abort() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.aborted++
	return nil
}

func (s *memSink) file(id int64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[id]
	return b, ok
}

func mkTrack(id int64, title string) models.Track {
	return models.Track{ID: id, Title: title}
}

func audio(id int64) []byte {
	return bytes.Repeat([]byte{byte(id)}, 64+int(id))
}

var (
	errAuth = fmt.Errorf("%w: token rejected", shared.ErrNotAuthenticated)
)
