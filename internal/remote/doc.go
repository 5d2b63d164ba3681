// Package remote is the host's HTTP client for the rempl server.
//
// The client probes server URLs entered in the server dialog and loads the
// rempl client page that a view embeds: the page is fetched, its scripts are
// extracted in document order and external scripts are fetched so the
// sandbox can run them.
//
// Requests go through resty with pooled transports, a token bucket limiter
// and a circuit breaker, so an unreachable server fails fast instead of
// stalling every view.
package remote
