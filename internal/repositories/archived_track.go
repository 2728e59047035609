package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
)

// ArchivedTrackRepository implements models.Repository[*models.ArchivedTrack] for the file index.
type ArchivedTrackRepository struct {
	db *sql.DB
}

// NewArchivedTrackRepository creates a new ArchivedTrackRepository with the given database connection
func NewArchivedTrackRepository(db *sql.DB) *ArchivedTrackRepository {
	return &ArchivedTrackRepository{db: db}
}

const archivedTrackColumns = `
	id, sequence, track_id, playlist_id, title, path, bytes, created_at, updated_at, deleted_at
`

// Create inserts a new [models.ArchivedTrack] with generated ID and sequence
func (r *ArchivedTrackRepository) Create(track *models.ArchivedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "archived_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	query := `INSERT INTO archived_tracks (` + archivedTrackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.TrackID(),
		track.PlaylistID(),
		track.Title(),
		track.Path(),
		track.Bytes(),
		track.CreatedAt(),
		track.UpdatedAt(),
		track.DeletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert archived track: %w", err)
	}

	return nil
}

// Get retrieves an archived track by ID, excluding soft-deleted rows
func (r *ArchivedTrackRepository) Get(id string) (*models.ArchivedTrack, error) {
	query := `SELECT ` + archivedTrackColumns + ` FROM archived_tracks WHERE id = ? AND deleted_at IS NULL`

	track, err := scanArchivedTrack(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archived track not found: %s", id)
	}
	return track, err
}

// GetByTrack retrieves the row for a track inside a playlist (0 for likes), including soft-deleted rows
// so a re-download can restore them.
func (r *ArchivedTrackRepository) GetByTrack(trackID, playlistID int64) (*models.ArchivedTrack, error) {
	query := `SELECT ` + archivedTrackColumns + ` FROM archived_tracks WHERE track_id = ? AND playlist_id = ?`

	track, err := scanArchivedTrack(r.db.QueryRow(query, trackID, playlistID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archived track not found: %d in playlist %d", trackID, playlistID)
	}
	return track, err
}

// Update stores a new path and size for an archived track and clears any soft delete
func (r *ArchivedTrackRepository) Update(track *models.ArchivedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)
	track.SetDeletedAt(nil)

	query := `
		UPDATE archived_tracks
		SET title = ?, path = ?, bytes = ?, updated_at = ?, deleted_at = NULL
		WHERE id = ?
	`

	result, err := r.db.Exec(query, track.Title(), track.Path(), track.Bytes(), now, track.ID())
	if err != nil {
		return fmt.Errorf("failed to update archived track: %w", err)
	}

	return expectRow(result, "archived track", track.ID())
}

// Delete soft-deletes an archived track by ID
func (r *ArchivedTrackRepository) Delete(id string) error {
	query := `
		UPDATE archived_tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete archived track: %w", err)
	}

	return expectRow(result, "archived track", id)
}

// List retrieves archived tracks in the order they were first written, excluding soft-deleted rows.
// Supported criteria: "playlist_id" and "track_id" (int64).
func (r *ArchivedTrackRepository) List(criteria map[string]any) ([]*models.ArchivedTrack, error) {
	query := `SELECT ` + archivedTrackColumns + ` FROM archived_tracks WHERE deleted_at IS NULL`
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(int64); ok {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}
	if trackID, ok := criteria["track_id"].(int64); ok {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.ArchivedTrack
	for rows.Next() {
		track, err := scanArchivedTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ArchiveStats summarizes the index.
type ArchiveStats struct {
	Files     int
	Tracks    int
	Playlists int
	Bytes     int64
}

// Stats counts live rows: files, distinct tracks, distinct playlists and total bytes.
func (r *ArchivedTrackRepository) Stats() (ArchiveStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(DISTINCT track_id),
			COUNT(DISTINCT NULLIF(playlist_id, 0)),
			COALESCE(SUM(bytes), 0)
		FROM archived_tracks
		WHERE deleted_at IS NULL
	`

	var stats ArchiveStats
	if err := r.db.QueryRow(query).Scan(&stats.Files, &stats.Tracks, &stats.Playlists, &stats.Bytes); err != nil {
		return ArchiveStats{}, fmt.Errorf("failed to compute archive stats: %w", err)
	}
	return stats, nil
}

func scanArchivedTrack(row scanner) (*models.ArchivedTrack, error) {
	var (
		id         string
		sequence   int
		trackID    int64
		playlistID int64
		title      string
		path       string
		bytes      int64
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &trackID, &playlistID, &title, &path, &bytes, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan archived track: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreArchivedTrack(id, sequence, trackID, playlistID, title, path, bytes, createdAt, updatedAt, deleted), nil
}
