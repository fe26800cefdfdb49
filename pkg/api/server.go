package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/blog"
	"github.com/platinummonkey/quill/pkg/httputil"
	"github.com/platinummonkey/quill/pkg/middleware"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// PostService is the blog read-path service
type PostService interface {
	ListPosts(ctx context.Context) ([]blog.PostSummary, error)
	GetPost(ctx context.Context, slug, clientIP string) (*blog.PostDetail, error)
	ListHeadings(ctx context.Context, slug string) ([]blog.Heading, error)
	IncrementClick(ctx context.Context, slug string) (int64, error)
	ResolvePost(ctx context.Context, slug string) (*blog.Post, error)
}

// AnalyticsQueries answers analytics reads
type AnalyticsQueries interface {
	GetPostStats(ctx context.Context, postID uuid.UUID, days int) (*analytics.PostStats, error)
	TopPosts(ctx context.Context, limit int) ([]analytics.TopPost, error)
}

// Options configures a Server
type Options struct {
	Posts     PostService
	Analytics AnalyticsQueries
	// APIKeys guard /api/blog; empty disables the check
	APIKeys []string
	// ClickLimiter rate limits click increments per client IP; nil disables it
	ClickLimiter middleware.Limiter
	// CORSOrigins enables CORS for the listed origins
	CORSOrigins []string
	PageSize    int
	MaxPageSize int

	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = 100
	}
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		logger: opts.Logger.OrDefault(),
	}
	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	}
	if len(opts.CORSOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(opts.CORSOrigins))
	}
	s.handler = httputil.Chain(chain...)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics, routeTemplate))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})

	if s.opts.Health != nil {
		s.router.HandleFunc("/health/live", s.opts.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.opts.Health.Readiness).Methods("GET")
	}
	if s.opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods("GET")
	}

	blogRouter := s.router.PathPrefix("/api/blog").Subrouter()
	blogRouter.Use(middleware.APIKey(s.opts.APIKeys, s.logger))

	NewBlogHandlers(s.opts.Posts, s.opts.PageSize, s.opts.MaxPageSize, s.opts.ClickLimiter, s.logger).RegisterRoutes(blogRouter)
	if s.opts.Analytics != nil {
		NewAnalyticsHandlers(s.opts.Posts, s.opts.Analytics, s.logger).RegisterRoutes(blogRouter)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
