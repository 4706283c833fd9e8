// Package middleware holds the gin middleware of the host API: CORS,
// per-IP rate limiting, access logging and panic recovery.
//
//	router.Use(middleware.AccessLog(logger), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
