// package services defines the [Transport] used by the archive engine and implements it for SoundCloud
package services

import (
	"context"
	"io"

	"github.com/desertthunder/zester/internal/models"
)

// Transport performs authenticated requests against the remote service.
//
// Transient server failures are reported as errors matching [shared.ErrTransient]; callers decide whether to retry.
type Transport interface {
	// Profile fetches the authenticated user's counts.
	Profile(ctx context.Context) (*models.Profile, error)

	// LikesPage fetches one page of liked tracks. An empty cursor requests the first page.
	LikesPage(ctx context.Context, cursor string) (*models.Page[models.Track], error)

	// PlaylistsPage fetches one page of liked and owned playlists.
	PlaylistsPage(ctx context.Context, cursor string) (*models.Page[models.PlaylistSummary], error)

	// Playlist fetches the full record for a playlist. Tracks past the first few may be stubs.
	Playlist(ctx context.Context, id int64) (*models.Playlist, error)

	// Tracks fetches full records for the given ids. Unknown ids are absent from the result.
	Tracks(ctx context.Context, ids []int64) ([]models.Track, error)

	// OpenMediaStream resolves the track's preferred rendition and opens it for reading.
	OpenMediaStream(ctx context.Context, track models.Track) (io.ReadCloser, error)

	// Name returns the name of the service
	Name() string
}
