// Package repositories implements the SQLite archive index.
//
// The index is bookkeeping: it records what was written where, and which runs happened. The archive on
// disk stays usable without it.
//
// Key Implementations:
//   - [ArchivedTrackRepository] : one row per committed media file, unique per (track, playlist)
//   - [RunRepository] : fetch and download run history with status and counts
//   - [ArchiveRecorder] : adapts [ArchivedTrackRepository] to storage.Recorder
//
// Archived tracks support soft deletes via deleted_at and exclude deleted rows from queries.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
