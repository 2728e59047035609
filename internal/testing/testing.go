// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
)

// PageResult is one scripted response of a paginated listing.
type PageResult[T any] struct {
	Page *models.Page[T]
	Err  error
}

// MockTransport is a scripted test double for [services.Transport].
//
// Page scripts are consumed one entry per call. Error scripts in PlaylistErrs and MediaErrs are consumed
// before the call succeeds; MediaFail is returned on every call.
type MockTransport struct {
	mu sync.Mutex

	ProfileResult *models.Profile
	ProfileErr    error

	LikesPages     []PageResult[models.Track]
	PlaylistPages  []PageResult[models.PlaylistSummary]
	LikesCursors   []string
	PlaylistCursor []string

	Playlists    map[int64]*models.Playlist
	PlaylistErrs map[int64][]error

	TrackRecords map[int64]models.Track
	TracksErr    error
	TracksCalls  [][]int64

	Media        map[int64][]byte
	MediaErrs    map[int64][]error
	MediaFail    map[int64]error
	MediaReadErr map[int64]error
	OpenCalls    []int64

	inFlight    int
	MaxInFlight int
}

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) Profile(ctx context.Context) (*models.Profile, error) {
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	if m.ProfileResult == nil {
		return &models.Profile{ID: 1, Username: "mock"}, nil
	}
	return m.ProfileResult, nil
}

func nextPage[T any](script *[]PageResult[T]) (*models.Page[T], error) {
	if len(*script) == 0 {
		return nil, errors.New("mock: page script exhausted")
	}
	r := (*script)[0]
	*script = (*script)[1:]
	return r.Page, r.Err
}

func (m *MockTransport) LikesPage(ctx context.Context, cursor string) (*models.Page[models.Track], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LikesCursors = append(m.LikesCursors, cursor)
	return nextPage(&m.LikesPages)
}

func (m *MockTransport) PlaylistsPage(ctx context.Context, cursor string) (*models.Page[models.PlaylistSummary], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlaylistCursor = append(m.PlaylistCursor, cursor)
	return nextPage(&m.PlaylistPages)
}

func (m *MockTransport) Playlist(ctx context.Context, id int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if errs := m.PlaylistErrs[id]; len(errs) > 0 {
		m.PlaylistErrs[id] = errs[1:]
		return nil, errs[0]
	}
	p, ok := m.Playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", shared.ErrPlaylistNotFound, id)
	}
	cp := *p
	cp.Tracks = append([]models.Track{}, p.Tracks...)
	return &cp, nil
}

func (m *MockTransport) Tracks(ctx context.Context, ids []int64) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TracksCalls = append(m.TracksCalls, append([]int64{}, ids...))
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	var out []models.Track
	for _, id := range ids {
		if t, ok := m.TrackRecords[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTransport) OpenMediaStream(ctx context.Context, track models.Track) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCalls = append(m.OpenCalls, track.ID)
	if errs := m.MediaErrs[track.ID]; len(errs) > 0 {
		m.MediaErrs[track.ID] = errs[1:]
		return nil, errs[0]
	}
	if err := m.MediaFail[track.ID]; err != nil {
		return nil, err
	}
	data, ok := m.Media[track.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoPlayableMedia, track)
	}

	m.inFlight++
	m.MaxInFlight = max(m.MaxInFlight, m.inFlight)

	var r io.Reader = bytes.NewReader(data)
	if err := m.MediaReadErr[track.ID]; err != nil {
		r = io.MultiReader(bytes.NewReader(data[:len(data)/2]), &errReader{err: err})
	}
	return &trackedBody{Reader: r, done: m.release}, nil
}

func (m *MockTransport) release() {
	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

type trackedBody struct {
	io.Reader
	once sync.Once
	done func()
}

func (b *trackedBody) Close() error {
	b.once.Do(b.done)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
