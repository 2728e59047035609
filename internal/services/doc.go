// Package services defines the [Transport] capability consumed by the archive engine and implements it for SoundCloud.
//
// # Transport Interface
//
// The engine only ever asks for "page N of collection C", "the full record for playlist P",
// "full records for these track ids" and "a byte stream for track T". Everything about URLs,
// authentication and response shapes stays in this package.
//
// # SoundCloud Implementation
//
// [SoundCloudService] talks to the v2 API. The OAuth token is attached by an [oauth2.Transport]
// with token type "OAuth"; the client id is appended to every request URL.
// Collections paginate through next_href, which is used verbatim as the cursor.
//
// Streaming is a two step resolution: the transcoding URL returns a short-lived signed location,
// which is then opened. Only progressive, full-length renditions are considered.
//
// # Error Handling
//
// Non-2xx responses become [StatusError], which unwraps to a sentinel from the shared package:
//   - [shared.ErrTransient] : 5xx, network timeouts
//   - [shared.ErrRateLimited] : 429 (also transient)
//   - [shared.ErrNotAuthenticated] : 401/403, token rejected
//   - [shared.ErrAPIRequest] : any other status
//
// Decoding failures are [shared.ErrMalformedResponse]. Lookups that 404 map to
// [shared.ErrPlaylistNotFound] or [shared.ErrTrackNotFound].
//
// # Raw requests
//
// [APIService] reuses the authenticated client for `zester api get`.
package services
