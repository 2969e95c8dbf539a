// Package player binds one track at a time to an audio [Output].
//
// # Session
//
// [Session] owns the output for its whole lifetime and funnels every mutation through its
// methods. Play resolves a stream URL first and only touches the output once resolution
// succeeded, so a failed switch leaves the previous track playing. Neither the resolution nor the
// download holds the session lock. Each Play takes a generation number and a cancellable
// context; a newer Play cancels the older one, which returns [ErrSuperseded].
//
// A video stream the output cannot decode is reported as [ErrDegraded] with the video's public
// page, the same way a degraded resolution is.
//
// Natural end of track asks the queue for the next entry. When there is none, or it cannot be
// played, the output stops and rewinds.
//
// # History
//
// Before switching away from a track the session reports the elapsed seconds to a
// [HistoryRecorder] in the background. Reporting failures are logged and never block a switch.
//
// # Events
//
// State changes are published on [Session.Events]. Sends never block: a slow reader misses
// events rather than stalling playback.
package player
