// Package middleware provides the HTTP middleware for the portal.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing from the CORS_ORIGIN setting
//   - RateLimit: Per-IP fixed window, N requests per window, with
//     X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers
//   - APIKey: Shared-secret check on the X-API-Key header
//   - SecurityHeaders: Browser hardening headers
//
// Rate Limiting:
//   - Per-IP tracking with cleanup of clients whose window has expired
//   - A window opens with a client's first request and resets once it is
//     Window old; rejected requests count against it
//
// Example Usage:
//
//	router.Use(middleware.SecurityHeaders())
//	router.Use(middleware.CORS(middleware.CORSConfigFromOrigin("*")))
//	api := router.Group("/api")
//	api.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	api.Use(middleware.APIKey(key, logger))
package middleware
