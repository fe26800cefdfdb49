package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/platinummonkey/quill/pkg/contextkeys"
	"github.com/platinummonkey/quill/pkg/httputil"
	"github.com/platinummonkey/quill/pkg/observability"
)

// APIKeyHeader is the request header carrying the API key
const APIKeyHeader = "API-Key"

// APIKey rejects requests whose API-Key header is not one of keys. With no
// keys configured every request passes.
func APIKey(keys []string, logger *observability.Logger) func(http.Handler) http.Handler {
	logger = logger.OrDefault()
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				httputil.WriteUnauthorized(w, "missing API key")
				return
			}
			if !validKey(keys, key) {
				observability.FromContext(r.Context(), logger).
					WithField("client_ip", httputil.GetClientIP(r)).
					Warn("rejected invalid API key")
				httputil.WriteUnauthorized(w, "invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithAPIKey(r.Context(), key)))
		})
	}
}

func validKey(keys []string, key string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return ok == 1
}
