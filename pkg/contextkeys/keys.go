// Package contextkeys provides centralized context key definitions.
//
// All context keys used across quill are declared here so that a key set by
// middleware and read by a handler or background task can be found in one place.
//
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	RequestIDKey Key = "request_id"

	// ClientIPKey contains the resolved client IP string
	// Set by: httputil.RequestIDMiddleware
	// Used by: httputil.LoggingMiddleware
	ClientIPKey Key = "client_ip"

	// APIKeyKey contains the API key that authorized the request
	// Set by: middleware.APIKey (pkg/middleware/auth.go)
	APIKeyKey Key = "api_key"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithClientIP adds the resolved client IP to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP retrieves the resolved client IP from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// WithAPIKey records the API key that authorized the request
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, APIKeyKey, key)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
