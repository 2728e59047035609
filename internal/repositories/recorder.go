package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/zester/internal/models"
)

// ArchiveRecorder implements storage.Recorder using ArchivedTrackRepository.
//
// A track written again to the same (track, playlist) slot updates the existing row instead of adding one.
type ArchiveRecorder struct {
	repo *ArchivedTrackRepository
}

// NewArchiveRecorder creates a new ArchiveRecorder with the given repository
func NewArchiveRecorder(repo *ArchivedTrackRepository) *ArchiveRecorder {
	return &ArchiveRecorder{repo: repo}
}

// Record upserts the index row for a committed file.
func (a *ArchiveRecorder) Record(ctx context.Context, track *models.ArchivedTrack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := a.repo.GetByTrack(track.TrackID(), track.PlaylistID())
	if err == nil && existing != nil {
		existing.SetPath(track.Path())
		existing.SetBytes(track.Bytes())
		if err := a.repo.Update(existing); err != nil {
			return fmt.Errorf("failed to record track: %w", err)
		}
		return nil
	}

	if err := a.repo.Create(track); err != nil {
		return fmt.Errorf("failed to record track: %w", err)
	}
	return nil
}
