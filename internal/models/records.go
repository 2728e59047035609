package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/zester/internal/shared"
)

// Credentials identify the user to the remote service. They are immutable for a run.
type Credentials struct {
	OAuthToken string
	ClientID   string
}

// Validate reports whether both halves of the credential pair are present.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.OAuthToken) == "" {
		missing = append(missing, "oauth token")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Profile holds the counts used to size progress reporting before crawling starts.
type Profile struct {
	ID                    int64  `json:"id"`
	Username              string `json:"username"`
	Permalink             string `json:"permalink"`
	LikesCount            int    `json:"likes_count"`
	PlaylistCount         int    `json:"playlist_count"`
	PrivatePlaylistsCount int    `json:"private_playlists_count"`
}

// TotalPlaylistCount is the number of playlists the playlist listing is expected to return.
func (p Profile) TotalPlaylistCount() int {
	return p.PlaylistCount + p.PrivatePlaylistsCount
}

// Page is one response of a paginated listing.
type Page[T any] struct {
	Items []T
	Next  string // continuation cursor, empty on the last page
}

// HasNext reports whether another page follows.
func (p *Page[T]) HasNext() bool {
	return p.Next != ""
}

// Collection is a fully paginated listing in server order.
type Collection[T any] []T

// User is the uploader of a track.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Permalink string `json:"permalink,omitempty"`
}

// Format describes how a transcoding is delivered.
type Format struct {
	Protocol string `json:"protocol"`
	MimeType string `json:"mime_type"`
}

// Transcoding is one encoded rendition of a track. URL resolves to the actual stream location.
type Transcoding struct {
	URL     string `json:"url"`
	Preset  string `json:"preset"`
	Snipped bool   `json:"snipped"`
	Quality string `json:"quality,omitempty"`
	Format  Format `json:"format"`
}

// IsProgressive reports whether the rendition is a single downloadable file rather than a segmented stream.
func (t Transcoding) IsProgressive() bool {
	return t.Format.Protocol == "progressive"
}

// Extension returns the file extension that matches the rendition's mime type.
func (t Transcoding) Extension() string {
	mime := t.Format.MimeType
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	switch strings.TrimSpace(mime) {
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/aac":
		return "m4a"
	default:
		return "bin"
	}
}

// Media lists the renditions available for a track.
type Media struct {
	Transcodings []Transcoding `json:"transcodings"`
}

// Track is an archived track. Only ID is guaranteed; stubs carry nothing else.
type Track struct {
	ID           int64  `json:"id"`
	Title        string `json:"title,omitempty"`
	Permalink    string `json:"permalink,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	Duration     int    `json:"duration,omitempty"` // milliseconds
	Genre        string `json:"genre,omitempty"`
	ArtworkURL   string `json:"artwork_url,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	Streamable   bool   `json:"streamable"`
	User         *User  `json:"user,omitempty"`
	Media        *Media `json:"media,omitempty"`
}

// IsStub reports whether the track is an id-only reference that needs completing.
func (t Track) IsStub() bool {
	return t.Title == ""
}

// Artist returns the uploader's display name, or an empty string.
func (t Track) Artist() string {
	if t.User == nil {
		return ""
	}
	return t.User.Username
}

// PreferredTranscoding picks the rendition to download: a full-length progressive stream,
// preferring mp3. The boolean is false when the track has nothing downloadable.
func (t Track) PreferredTranscoding() (Transcoding, bool) {
	if t.Media == nil {
		return Transcoding{}, false
	}

	var fallback *Transcoding
	for i := range t.Media.Transcodings {
		tc := t.Media.Transcodings[i]
		if !tc.IsProgressive() || tc.Snipped || tc.URL == "" {
			continue
		}
		if tc.Extension() == "mp3" {
			return tc, true
		}
		if fallback == nil {
			fallback = &t.Media.Transcodings[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Transcoding{}, false
}

// String renders the track for log lines.
func (t Track) String() string {
	if t.IsStub() {
		return fmt.Sprintf("track %d", t.ID)
	}
	if artist := t.Artist(); artist != "" {
		return fmt.Sprintf("%s - %s", artist, t.Title)
	}
	return t.Title
}

// PlaylistSummary is the minimal identity needed to request a full playlist.
type PlaylistSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	TrackCount int    `json:"track_count"`
}

// Playlist is a hydrated playlist. A playlist with zero tracks is valid.
type Playlist struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Permalink    string  `json:"permalink,omitempty"`
	PermalinkURL string  `json:"permalink_url,omitempty"`
	TrackCount   int     `json:"track_count"`
	Tracks       []Track `json:"tracks"`
}

// Summary returns the identity of the playlist.
func (p Playlist) Summary() PlaylistSummary {
	return PlaylistSummary{ID: p.ID, Title: p.Title, TrackCount: p.TrackCount}
}

// StubIDs returns the ids of tracks that still need to be completed, in playlist order.
func (p Playlist) StubIDs() []int64 {
	var ids []int64
	for _, t := range p.Tracks {
		if t.IsStub() {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
