package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/quill/pkg/blog"
	"github.com/platinummonkey/quill/pkg/httputil"
	"github.com/platinummonkey/quill/pkg/observability"
)

// writeServiceError maps a service error onto the response envelope
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error, notFound string) {
	if errors.Is(err, blog.ErrNotFound) {
		httputil.WriteNotFound(w, notFound)
		return
	}
	observability.FromContext(r.Context(), logger).
		WithError(err).
		WithField("path", r.URL.Path).
		Error("request failed")
	httputil.WriteInternalError(w)
}
