// Package repositories implements SQLite persistence for listening history, favorites and playlists.
//
// Key Implementations:
//   - [TrackRepository] : catalog metadata keyed by (source, source_track_id)
//   - [HistoryRepository] : append-only plays, ensuring the track row exists first
//   - [FavoriteRepository] : liked tracks
//   - [PlaylistRepository] : ordered track collections
//
// Every write that references a track upserts its metadata row in the same transaction, so callers never
// have to save a track before using it.
package repositories
