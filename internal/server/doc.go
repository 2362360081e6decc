// Package server provides HTTP routing, middleware, and the auth gateway for the token broker.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Auth Gateway
//
// [Gateway] sequences the OAuth2 authorization-code lifecycle across two
// delivery channels. Login records the initiating client surface (browser or
// native app) as read-once session state; the callback exchanges the code,
// resolves the user identity, persists the token record, and dispatches the
// result over the recorded channel: a redirect to the landing view for the
// web, or a deep link carrying the access token for the app.
//
// The deep-link formats are a stable contract with the native client:
//
//	<scheme>://callback?access_token=<token>
//	<scheme>://callback?error=cancelled
//
// # Authenticated Resources
//
// [LibraryHandler] resolves a per-request client handle from either a bearer
// token (app) or the session's bound user identity (web, with transparent
// refresh), then proxies the user's saved tracks. [VideoHandler] proxies
// video search and audio URL resolution. [PlayerHandler] serves the embedded
// landing page.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
