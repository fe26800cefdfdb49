// Package api provides the HTTP server for the blog read API.
//
// # Routes
//
// Under /api/blog, guarded by the API-Key header when keys are configured:
//
//	GET  /api/blog/posts/                   published posts, paginated (page, page_size)
//	GET  /api/blog/post/?slug=              post detail; records a view
//	GET  /api/blog/posts/headings/?slug=    headings of a post
//	POST /api/blog/post/increment-click/    {"slug": "..."}; returns the new click total
//	GET  /api/blog/post/analytics/?slug=    durable analytics of a post (days=)
//	GET  /api/blog/analytics/top/?limit=    posts with the most impressions
//
// Operational routes: /health/live, /health/ready and /metrics.
//
// # Errors
//
// A missing post or slug is a 404 envelope. Every other failure is logged with
// the request id and answered with a generic 500 that does not leak internals.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//		Posts:     blogService,
//		Analytics: analytics.NewService(replica, analytics.NewPostgresStore(primary)),
//		APIKeys:   cfg.Auth.APIKeys,
//		Logger:    logger,
//		Metrics:   metrics,
//		Registry:  registry,
//		Health:    health,
//	})
//	http.ListenAndServe(":8000", server)
package api
