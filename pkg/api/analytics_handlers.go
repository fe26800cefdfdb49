package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/quill/pkg/httputil"
	"github.com/platinummonkey/quill/pkg/observability"
)

// AnalyticsHandlers provides analytics API endpoints
type AnalyticsHandlers struct {
	posts   PostService
	service AnalyticsQueries
	logger  *observability.Logger
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(posts PostService, service AnalyticsQueries, logger *observability.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		posts:   posts,
		service: service,
		logger:  logger.OrDefault(),
	}
}

// RegisterRoutes registers analytics API routes on a router mounted at /api/blog
func (h *AnalyticsHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/post/analytics/", h.getPostAnalytics).Methods("GET")
	r.HandleFunc("/analytics/top/", h.getTopPosts).Methods("GET")
}

// getPostAnalytics handles GET /api/blog/post/analytics/?slug=
// Query params:
//   - days: length of the daily series (1-365) - default: 30
func (h *AnalyticsHandlers) getPostAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := httputil.ParseQueryInt(r, "days", 30)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	post, err := h.posts.ResolvePost(ctx, httputil.ParseQueryString(r, "slug", ""))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "the requested post does not exist")
		return
	}

	stats, err := h.service.GetPostStats(ctx, post.ID, days)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	_ = httputil.WriteResults(w, http.StatusOK, stats)
}

// getTopPosts handles GET /api/blog/analytics/top/
// Query params:
//   - limit: Number of results (1-100) - default: 10
func (h *AnalyticsHandlers) getTopPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 10)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	posts, err := h.service.TopPosts(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	_ = httputil.WriteResults(w, http.StatusOK, posts)
}
