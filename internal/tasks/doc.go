// Package tasks is the archive pipeline: it pages through collections, hydrates playlists and downloads audio,
// absorbing transient server failures and isolating per-item errors.
//
// # Phases
//
// [ArchiveEngine] exposes each phase separately; callers run them one after another:
//
//  1. [FetchAll] (via [ArchiveEngine.Likes] and [ArchiveEngine.PlaylistSummaries]) : walks a listing page by page
//     - a transient failure pauses and re-requests the same cursor
//     - any other failure aborts with no partial result
//
//  2. [ArchiveEngine.Hydrate] : fetches the full record for each playlist summary
//     - stub tracks are completed in batches
//     - a failed playlist is reported once and left out
//
//  3. [ArchiveEngine.DownloadTracks] and [ArchiveEngine.DownloadPlaylists] : stream audio into an [OutputSink]
//     - limit truncates the input before anything is attempted
//     - a failed track is reported and skipped; the run continues
//     - a fixed pacing delay separates tracks
//
// # Failure Policy
//
// Errors matching [shared.ErrTransient] are retried after [RetryPolicy.Delay], up to [RetryPolicy.MaxRetries] times.
// Per-item failures become [ItemError] events. Rejected credentials, unavailable storage and cancellation
// are returned to the caller.
//
// # Events
//
// All phases report through one [Event] vocabulary: a [Kind] (progress, batch size, retry pause, item
// start/done/error, group start/done) and a [Phase], with the track or playlist concerned attached.
// Handlers are called synchronously and never influence control flow. [ChannelHandler] forwards events
// without blocking, for UIs running in another goroutine.
//
// # Workers
//
// With Options.Workers > 1 tracks are downloaded by a bounded pool. A token bucket allowing one start
// per pacing interval replaces the sleep; events and report updates are serialized so counts match the
// sequential run. Completion order may differ from input order.
package tasks
