// Package middleware provides the HTTP middleware for the rempl host API.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID tagging, echoed in responses
//   - Logger: one zap line per request
//   - CORS: Cross-origin resource sharing for rempl client origins
//   - RateLimit: Per-IP token bucket rate limiting with idle client cleanup
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
