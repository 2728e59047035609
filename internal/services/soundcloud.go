// SoundCloud v2 API implementation of [Transport]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	soundcloudBaseURL = "https://api-v2.soundcloud.com"
	defaultPageSize   = 200
	// maxTrackIDs is the largest id list the tracks endpoint accepts.
	maxTrackIDs = 50
)

type likeItem struct {
	CreatedAt string        `json:"created_at"`
	Track     *models.Track `json:"track"`
}

type likesResponse struct {
	Collection []likeItem `json:"collection"`
	NextHref   *string    `json:"next_href"`
}

type playlistItem struct {
	Type     string `json:"type"`
	Playlist *struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		TrackCount int    `json:"track_count"`
	} `json:"playlist"`
}

type playlistsResponse struct {
	Collection []playlistItem `json:"collection"`
	NextHref   *string        `json:"next_href"`
}

type streamLocation struct {
	URL string `json:"url"`
}

// SoundCloudOptions configures a [SoundCloudService]. Zero values fall back to defaults.
type SoundCloudOptions struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	PageSize          int
	// Base is the underlying transport; nil uses [http.DefaultTransport].
	Base http.RoundTripper
}

// SoundCloudService implements [Transport] against api-v2.soundcloud.com.
//
// The OAuth token is attached by an [oauth2.Transport]; the client id travels as a query parameter.
// Every request waits on a shared [rate.Limiter].
type SoundCloudService struct {
	baseURL    string
	clientID   string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter

	// mediaClient has no overall timeout; streams run as long as ctx allows.
	mediaClient   *http.Client
	headerTimeout time.Duration

	mu     sync.Mutex
	userID int64
}

// NewSoundCloudService creates a SoundCloud transport for the given credentials.
func NewSoundCloudService(creds models.Credentials, opts SoundCloudOptions) (*SoundCloudService, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = soundcloudBaseURL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	token := &oauth2.Token{AccessToken: creds.OAuthToken, TokenType: "OAuth"}
	authed := &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: opts.Base}

	return &SoundCloudService{
		baseURL:       baseURL,
		clientID:      creds.ClientID,
		pageSize:      pageSize,
		httpClient:    &http.Client{Transport: authed, Timeout: opts.Timeout},
		mediaClient:   &http.Client{Transport: authed},
		headerTimeout: opts.Timeout,
		limiter:       rate.NewLimiter(limit, 1),
	}, nil
}

func (s *SoundCloudService) Name() string {
	return "SoundCloud"
}

// Client returns the authenticated HTTP client, for raw requests.
func (s *SoundCloudService) Client() *http.Client {
	return s.httpClient
}

// withClientID returns rawURL with client_id set, resolving relative paths against the base URL.
func (s *SoundCloudService) withClientID(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = s.baseURL + "/" + strings.TrimLeft(rawURL, "/")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	q := u.Query()
	q.Set("client_id", s.clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do sends an authenticated GET and returns the response when its status is 2xx.
func (s *SoundCloudService) do(ctx context.Context, rawURL string) (*http.Response, error) {
	return s.send(ctx, s.httpClient, rawURL)
}

func (s *SoundCloudService) send(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, requestError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, NewStatusError(resp.StatusCode, rawURL)
	}
	return resp, nil
}

// getJSON performs an authenticated GET against the API and decodes the body into result.
func (s *SoundCloudService) getJSON(ctx context.Context, endpoint string, result any) error {
	full, err := s.withClientID(endpoint)
	if err != nil {
		return err
	}

	resp, err := s.do(ctx, full)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrMalformedResponse, endpoint, err)
	}
	return nil
}

// Profile retrieves the authenticated user and remembers their id for collection listings.
func (s *SoundCloudService) Profile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := s.getJSON(ctx, "/me", &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrMalformedResponse)
	}

	s.mu.Lock()
	s.userID = profile.ID
	s.mu.Unlock()
	return &profile, nil
}

func (s *SoundCloudService) currentUserID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	id := s.userID
	s.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	profile, err := s.Profile(ctx)
	if err != nil {
		return 0, err
	}
	return profile.ID, nil
}

// firstPage builds the first page endpoint of a per-user collection.
func (s *SoundCloudService) firstPage(ctx context.Context, collection string) (string, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/users/%d/%s?limit=%d&linked_partitioning=1", userID, collection, s.pageSize), nil
}

// LikesPage retrieves one page of the user's liked tracks, most recent first.
func (s *SoundCloudService) LikesPage(ctx context.Context, cursor string) (*models.Page[models.Track], error) {
	endpoint := cursor
	if endpoint == "" {
		var err error
		if endpoint, err = s.firstPage(ctx, "track_likes"); err != nil {
			return nil, err
		}
	}

	var response likesResponse
	if err := s.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.Track]{Items: make([]models.Track, 0, len(response.Collection))}
	for _, item := range response.Collection {
		// Likes of removed tracks come back without a track body.
		if item.Track == nil {
			continue
		}
		page.Items = append(page.Items, *item.Track)
	}
	if response.NextHref != nil {
		page.Next = *response.NextHref
	}
	return page, nil
}

// PlaylistsPage retrieves one page of the user's liked and owned playlists.
func (s *SoundCloudService) PlaylistsPage(ctx context.Context, cursor string) (*models.Page[models.PlaylistSummary], error) {
	endpoint := cursor
	if endpoint == "" {
		var err error
		if endpoint, err = s.firstPage(ctx, "playlists/liked_and_owned"); err != nil {
			return nil, err
		}
	}

	var response playlistsResponse
	if err := s.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.PlaylistSummary]{Items: make([]models.PlaylistSummary, 0, len(response.Collection))}
	for _, item := range response.Collection {
		if item.Playlist == nil {
			continue
		}
		page.Items = append(page.Items, models.PlaylistSummary{
			ID:         item.Playlist.ID,
			Title:      item.Playlist.Title,
			TrackCount: item.Playlist.TrackCount,
		})
	}
	if response.NextHref != nil {
		page.Next = *response.NextHref
	}
	return page, nil
}

// Playlist retrieves a playlist by id.
func (s *SoundCloudService) Playlist(ctx context.Context, id int64) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := s.getJSON(ctx, fmt.Sprintf("/playlists/%d", id), &playlist); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}
	if playlist.ID == 0 {
		return nil, fmt.Errorf("%w: playlist %d has no id", shared.ErrIncompleteRecord, id)
	}
	if playlist.Tracks == nil {
		playlist.Tracks = []models.Track{}
	}
	return &playlist, nil
}

// Tracks retrieves full track records, splitting ids into requests the endpoint accepts.
func (s *SoundCloudService) Tracks(ctx context.Context, ids []int64) ([]models.Track, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no track ids provided", shared.ErrInvalidArgument)
	}

	tracks := make([]models.Track, 0, len(ids))
	for start := 0; start < len(ids); start += maxTrackIDs {
		end := min(start+maxTrackIDs, len(ids))

		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}

		var batch []models.Track
		endpoint := "/tracks?ids=" + url.QueryEscape(strings.Join(parts, ","))
		if err := s.getJSON(ctx, endpoint, &batch); err != nil {
			return nil, err
		}
		tracks = append(tracks, batch...)
	}
	return tracks, nil
}

// OpenMediaStream resolves the preferred transcoding to a signed stream URL and opens it.
// The caller must close the returned body.
func (s *SoundCloudService) OpenMediaStream(ctx context.Context, track models.Track) (io.ReadCloser, error) {
	if track.IsStub() {
		return nil, fmt.Errorf("%w: %s has no metadata", shared.ErrIncompleteRecord, track)
	}
	transcoding, ok := track.PreferredTranscoding()
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoPlayableMedia, track)
	}

	var location streamLocation
	if err := s.getJSON(ctx, transcoding.URL, &location); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track)
		}
		return nil, err
	}
	if location.URL == "" {
		return nil, fmt.Errorf("%w: empty stream url for %s", shared.ErrMalformedResponse, track)
	}

	return s.stream(ctx, location.URL)
}

// stream opens rawURL on the media client. Only the wait for response headers is bounded
// by the API timeout; reading the body is bounded by ctx alone.
func (s *SoundCloudService) stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)

	var timer *time.Timer
	if s.headerTimeout > 0 {
		timer = time.AfterFunc(s.headerTimeout, cancel)
	}

	resp, err := s.send(ctx, s.mediaClient, rawURL)
	if timer != nil && !timer.Stop() {
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("%w: no response from media server within %s", shared.ErrTransient, s.headerTimeout)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &mediaBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// mediaBody releases the stream's context when the body is closed.
type mediaBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *mediaBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
