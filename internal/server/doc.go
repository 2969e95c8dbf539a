// Package server exposes a playback session over a small local HTTP API and hosts the OAuth
// callback used by `openbeats auth youtube`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so handlers can read
// path values with [http.Request.PathValue].
//
// # Remote Control
//
// [API] registers the JSON endpoints under /api:
//
//	GET    /api/health
//	GET    /api/now-playing
//	GET    /api/queue
//	POST   /api/queue              {"track": {...}, "next": false}
//	DELETE /api/queue/{index}
//	POST   /api/queue/shuffle
//	POST   /api/queue/repeat       ?mode=off|all|one (cycles when omitted)
//	POST   /api/play               {"track": {...}, "set": [...]}
//	POST   /api/play/{index}
//	POST   /api/player/{action}    toggle, pause, resume, stop, next, previous
//	POST   /api/player/seek        ?seconds=N or ?delta=N
//	POST   /api/player/volume      ?percent=N
//	GET    /api/search             ?q=&limit=&sources=jamendo,fma
//
// Errors are JSON objects with an "error" message and, for tracks that can only be opened
// externally, a "link".
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes an authorization code flow. It validates the state parameter,
// exchanges the code for a token and delivers exactly one result through a channel.
package server
