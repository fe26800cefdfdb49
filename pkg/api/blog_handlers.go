package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/quill/pkg/httputil"
	"github.com/platinummonkey/quill/pkg/middleware"
	"github.com/platinummonkey/quill/pkg/observability"
)

// BlogHandlers serves the post read paths and click counting
type BlogHandlers struct {
	posts        PostService
	pageSize     int
	maxPageSize  int
	clickLimiter middleware.Limiter
	logger       *observability.Logger
}

// NewBlogHandlers creates the blog handlers
func NewBlogHandlers(posts PostService, pageSize, maxPageSize int, clickLimiter middleware.Limiter, logger *observability.Logger) *BlogHandlers {
	return &BlogHandlers{
		posts:        posts,
		pageSize:     pageSize,
		maxPageSize:  maxPageSize,
		clickLimiter: clickLimiter,
		logger:       logger.OrDefault(),
	}
}

// RegisterRoutes registers the blog routes on a router mounted at /api/blog
func (h *BlogHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/posts/", h.listPosts).Methods("GET")
	r.HandleFunc("/post/", h.getPost).Methods("GET")
	r.HandleFunc("/posts/headings/", h.listHeadings).Methods("GET")

	var click http.Handler = http.HandlerFunc(h.incrementClick)
	if h.clickLimiter != nil {
		click = middleware.RateLimit(h.clickLimiter, h.logger)(click)
	}
	r.Handle("/post/increment-click/", click).Methods("POST")
}

// listPosts handles GET /api/blog/posts/
// Query params:
//   - page: 1-based page number - default: 1
//   - page_size: posts per page - default: configured page size
func (h *BlogHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	page, size, err := httputil.ParsePagination(r, h.pageSize, h.maxPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "no posts found")
		return
	}
	_ = httputil.WritePage(w, r, posts, page, size)
}

// getPost handles GET /api/blog/post/?slug=
func (h *BlogHandlers) getPost(w http.ResponseWriter, r *http.Request) {
	slug := httputil.ParseQueryString(r, "slug", "")
	post, err := h.posts.GetPost(r.Context(), slug, httputil.GetClientIP(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "the requested post does not exist")
		return
	}
	_ = httputil.WriteResults(w, http.StatusOK, post)
}

// listHeadings handles GET /api/blog/posts/headings/?slug=
func (h *BlogHandlers) listHeadings(w http.ResponseWriter, r *http.Request) {
	headings, err := h.posts.ListHeadings(r.Context(), httputil.ParseQueryString(r, "slug", ""))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "the requested post does not exist")
		return
	}
	_ = httputil.WriteResults(w, http.StatusOK, headings)
}

// ClickRequest is the body of a click increment
type ClickRequest struct {
	Slug string `json:"slug"`
}

// ClickResponse reports the click total after an increment
type ClickResponse struct {
	Message string `json:"message"`
	Clicks  int64  `json:"clicks"`
}

// incrementClick handles POST /api/blog/post/increment-click/
func (h *BlogHandlers) incrementClick(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Slug) == "" {
		httputil.WriteBadRequest(w, "slug is required")
		return
	}

	clicks, err := h.posts.IncrementClick(r.Context(), req.Slug)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "the requested post does not exist")
		return
	}
	_ = httputil.WriteResults(w, http.StatusOK, ClickResponse{
		Message: "Click incremented successfully",
		Clicks:  clicks,
	})
}
