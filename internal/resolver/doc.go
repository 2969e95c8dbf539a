// Package resolver turns a (source, sourceTrackID) pair into a playable URL.
//
// Direct catalogs are resolved with one call to their [services.AudioLocator]. Video-platform
// tracks are resolved by racing the configured mirror [Backend]s: backends are grouped into
// batches, batches run one after another, and the backends inside a batch run concurrently
// with a per-mirror timeout. The first backend to return at least one audio stream wins and
// every sibling request is cancelled.
//
// Successful direct results are cached per track for a short TTL. Concurrent resolutions of
// the same track share one network call family through [singleflight].
//
// When every mirror fails the resolver can return a [KindDegraded] result that points at the
// public watch page instead of an error. That result is never cached.
package resolver
