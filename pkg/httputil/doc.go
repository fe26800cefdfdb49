// Package httputil provides the response envelope, request parsing and common
// middleware shared by the HTTP handlers.
//
// # Response Envelope
//
// Every response is wrapped:
//
//	{"success": true, "status": 200, "results": ...}
//	{"success": true, "status": 200, "count": 42, "next": "...", "previous": null, "results": [...]}
//	{"success": false, "status": 404, "error": "post not found"}
//
// Helpers:
//
//	httputil.WriteResults(w, http.StatusOK, post)
//	httputil.WritePage(w, r, items, page, pageSize)
//	httputil.WriteNotFound(w, "post not found")
//	httputil.WriteInternalError(w) // never exposes the cause
//
// # Request Parsing
//
//	var req ClickRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	page, size, err := httputil.ParsePagination(r, 10, 100)
//
// # Client IP
//
// GetClientIP prefers the first non-empty X-Forwarded-For entry and falls back
// to the connection address.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
