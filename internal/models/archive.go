package models

import (
	"fmt"
	"time"
)

// ArchivedTrack records one media file committed to disk.
//
// A track downloaded both from likes and from a playlist produces two rows; playlistID is 0 for likes.
type ArchivedTrack struct {
	id         string
	sequence   int
	trackID    int64
	playlistID int64
	title      string
	path       string
	bytes      int64
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
}

// NewArchivedTrack creates an [ArchivedTrack] for a file that was just written.
func NewArchivedTrack(track Track, playlistID int64, path string, bytes int64) *ArchivedTrack {
	now := time.Now()
	return &ArchivedTrack{
		trackID:    track.ID,
		playlistID: playlistID,
		title:      track.String(),
		path:       path,
		bytes:      bytes,
		createdAt:  now,
		updatedAt:  now,
	}
}

// RestoreArchivedTrack rebuilds an [ArchivedTrack] from stored columns.
func RestoreArchivedTrack(id string, sequence int, trackID, playlistID int64, title, path string, bytes int64, createdAt, updatedAt time.Time, deletedAt *time.Time) *ArchivedTrack {
	return &ArchivedTrack{
		id:         id,
		sequence:   sequence,
		trackID:    trackID,
		playlistID: playlistID,
		title:      title,
		path:       path,
		bytes:      bytes,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		deletedAt:  deletedAt,
	}
}

func (a *ArchivedTrack) ID() string            { return a.id }
func (a *ArchivedTrack) Sequence() int         { return a.sequence }
func (a *ArchivedTrack) TrackID() int64        { return a.trackID }
func (a *ArchivedTrack) PlaylistID() int64     { return a.playlistID }
func (a *ArchivedTrack) Title() string         { return a.title }
func (a *ArchivedTrack) Path() string          { return a.path }
func (a *ArchivedTrack) Bytes() int64          { return a.bytes }
func (a *ArchivedTrack) CreatedAt() time.Time  { return a.createdAt }
func (a *ArchivedTrack) UpdatedAt() time.Time  { return a.updatedAt }
func (a *ArchivedTrack) DeletedAt() *time.Time { return a.deletedAt }

func (a *ArchivedTrack) SetID(id string)           { a.id = id }
func (a *ArchivedTrack) SetSequence(seq int)       { a.sequence = seq }
func (a *ArchivedTrack) SetPath(path string)       { a.path = path }
func (a *ArchivedTrack) SetBytes(n int64)          { a.bytes = n }
func (a *ArchivedTrack) SetUpdatedAt(t time.Time)  { a.updatedAt = t }
func (a *ArchivedTrack) SetDeletedAt(t *time.Time) { a.deletedAt = t }

// Validate checks the fields required by the archived_tracks table.
func (a *ArchivedTrack) Validate() error {
	if a.trackID <= 0 {
		return fmt.Errorf("track id must be positive")
	}
	if a.path == "" {
		return fmt.Errorf("path is required")
	}
	if a.bytes < 0 {
		return fmt.Errorf("bytes must not be negative")
	}
	return nil
}

// RunKind names what an [ArchiveRun] did.
type RunKind string

const (
	RunFetchLikes        RunKind = "fetch_likes"
	RunFetchPlaylists    RunKind = "fetch_playlists"
	RunDownloadLikes     RunKind = "download_likes"
	RunDownloadPlaylists RunKind = "download_playlists"
)

// RunStatus is the lifecycle state of an [ArchiveRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ArchiveRun records one fetch or download phase and its outcome.
type ArchiveRun struct {
	id           string
	sequence     int
	kind         RunKind
	status       RunStatus
	itemsTotal   int
	itemsDone    int
	itemsFailed  int
	errorMessage string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewArchiveRun creates a running [ArchiveRun] of the given kind.
func NewArchiveRun(kind RunKind) *ArchiveRun {
	now := time.Now()
	return &ArchiveRun{
		kind:      kind,
		status:    RunRunning,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreArchiveRun rebuilds an [ArchiveRun] from stored columns.
func RestoreArchiveRun(id string, sequence int, kind RunKind, status RunStatus, total, done, failed int, errorMessage string, startedAt time.Time, finishedAt *time.Time, createdAt, updatedAt time.Time) *ArchiveRun {
	return &ArchiveRun{
		id:           id,
		sequence:     sequence,
		kind:         kind,
		status:       status,
		itemsTotal:   total,
		itemsDone:    done,
		itemsFailed:  failed,
		errorMessage: errorMessage,
		startedAt:    startedAt,
		finishedAt:   finishedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (r *ArchiveRun) ID() string             { return r.id }
func (r *ArchiveRun) Sequence() int          { return r.sequence }
func (r *ArchiveRun) Kind() RunKind          { return r.kind }
func (r *ArchiveRun) Status() RunStatus      { return r.status }
func (r *ArchiveRun) ItemsTotal() int        { return r.itemsTotal }
func (r *ArchiveRun) ItemsDone() int         { return r.itemsDone }
func (r *ArchiveRun) ItemsFailed() int       { return r.itemsFailed }
func (r *ArchiveRun) ErrorMessage() string   { return r.errorMessage }
func (r *ArchiveRun) StartedAt() time.Time   { return r.startedAt }
func (r *ArchiveRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *ArchiveRun) CreatedAt() time.Time   { return r.createdAt }
func (r *ArchiveRun) UpdatedAt() time.Time   { return r.updatedAt }

func (r *ArchiveRun) SetID(id string)          { r.id = id }
func (r *ArchiveRun) SetSequence(seq int)      { r.sequence = seq }
func (r *ArchiveRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// Finish closes the run with its counts. A nil err marks it succeeded; per-item failures do not fail a run.
func (r *ArchiveRun) Finish(total, done, failed int, err error) {
	now := time.Now()
	r.itemsTotal, r.itemsDone, r.itemsFailed = total, done, failed
	r.finishedAt = &now
	r.updatedAt = now
	r.status = RunSucceeded
	if err != nil {
		r.status = RunFailed
		r.errorMessage = err.Error()
	}
}

// Validate checks the fields required by the archive_runs table.
func (r *ArchiveRun) Validate() error {
	switch r.kind {
	case RunFetchLikes, RunFetchPlaylists, RunDownloadLikes, RunDownloadPlaylists:
	default:
		return fmt.Errorf("unknown run kind %q", r.kind)
	}
	switch r.status {
	case RunRunning, RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("unknown run status %q", r.status)
	}
	if r.itemsDone+r.itemsFailed > r.itemsTotal {
		return fmt.Errorf("done (%d) + failed (%d) exceeds total (%d)", r.itemsDone, r.itemsFailed, r.itemsTotal)
	}
	return nil
}
