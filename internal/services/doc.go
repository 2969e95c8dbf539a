// Package services implements one [Adapter] per catalog and an [Aggregator] that fans a search out across them.
//
// # Adapters
//
// Each adapter turns a provider's JSON into [models.Track] values at the boundary through a single
// constructor, so code past this package never sees provider-specific optional fields:
//   - [Jamendo]: licensed catalog, requires a client id
//   - [Archive]: Free Music Archive collection hosted on the Internet Archive
//   - [Audius]: decentralized catalog reached through a discovery host
//   - [YouTube]: YouTube Data API v3, requires an API key or bearer token
//
// Adapters that can hand back a directly playable URL also implement [AudioLocator].
// The video platform has no such endpoint and is resolved through mirrors in package resolver.
//
// # Errors
//
// Adapters return [ErrNotConfigured] when credentials are missing and [ErrProviderUnavailable]
// for transport failures and 5xx responses. The [Aggregator] absorbs both: a failing provider
// contributes an empty list and never fails the whole search.
package services
