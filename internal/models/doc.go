// Package models defines the records zester fetches, persists and archives.
//
// The package contains two categories of types:
//
// 1. Remote records: value types decoded from the streaming service and written to JSON between runs
//   - [Credentials] : OAuth token and client id forwarded to every request
//   - [Profile] : user-level counts used to size progress before crawling
//   - [Page] and [Collection] : one listing page and the fully paginated result
//   - [Track], [PlaylistSummary], [Playlist] : the archived metadata
//
// 2. Persistent entities: rows in the local archive index
//   - [ArchivedTrack] : one committed media file
//   - [ArchiveRun] : one fetch or download invocation with its counts
//
// Persistent entities implement [Model]; [Repository] defines standard CRUD operations for database access.
package models
