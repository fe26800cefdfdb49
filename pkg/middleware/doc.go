// Package middleware provides HTTP middleware for API key authentication and
// per-client rate limiting.
//
//	router.Use(middleware.APIKey(cfg.APIKeys, logger))
//	limiter := middleware.NewRedisLimiter(client, middleware.RateLimitConfig{
//		RequestsPerWindow: 30,
//		WindowDuration:    time.Minute,
//	}, "ratelimit:click")
//	clickRoute.Handler(middleware.RateLimit(limiter, logger)(clickHandler))
//
// Rate limiting fails open: when the limiter's store is unreachable the
// request is served and the failure logged.
package middleware
