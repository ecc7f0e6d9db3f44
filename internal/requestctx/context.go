// Package requestctx provides request-scoped values (e.g. the calling client) set by middleware.
package requestctx

import "context"

type contextKey struct{}

var clientKey = &contextKey{}

// SetClient stores the client a request is attributed to: its API key, or
// its remote address when the service runs without keys.
func SetClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// Client returns the client from context, or "" if not set.
func Client(ctx context.Context) string {
	v, _ := ctx.Value(clientKey).(string)
	return v
}
