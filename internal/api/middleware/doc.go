// Package middleware provides the HTTP middleware stack of the backend.
//
//   - CORS: cross-origin access for the shell UI
//   - RateLimit: per-IP token bucket, idle clients are forgotten
//   - GlobalRateLimit: one bucket for every caller
//   - Logger: one zap line per request, tagged with the trace ID
//
// Example Usage:
//
//	router.Use(tracing.HTTPMiddleware(tracer))
//	router.Use(middleware.Logger(logger, "/health", "/metrics"))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
