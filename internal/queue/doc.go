// Package queue owns the play order.
//
// [State] is an immutable value: every transition is a method that returns a new State and leaves
// the receiver untouched, so the transition table can be tested without any audio output.
// [Engine] wraps a State behind a mutex and is the single writer used by the playback session.
//
// Entries carry a sequence number so duplicate tracks stay distinguishable. While shuffle is on,
// the pre-shuffle order is kept in step with every add and remove, which makes turning shuffle
// off lossless.
package queue
