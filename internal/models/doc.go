// Package models defines the domain entities shared by every layer of the player.
//
// The package contains two categories of types:
//
// 1. Value types: immutable data that flows through search, resolution, and playback
//   - [Track] : one playable item from a single [Source]
//   - [Source] : closed set of catalog tags (jamendo, fma, audius, ytmusic)
//
// 2. Persistent Entities: rows owned by the SQLite store (internal/repositories)
//   - [Play] : one append-only listening history record
//   - [Favorite] : a track marked as liked
//   - [Playlist] : a named, ordered collection of tracks
//
// Track identity is the (source, sourceTrackId) pair. [Track.ID] is derived from it by [NewTrack] and never assigned independently.
package models
