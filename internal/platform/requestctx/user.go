// Package requestctx carries per-request identity through context.
package requestctx

import "context"

type userIDContextKey struct{}

type viewerIDContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithViewerID stores the viewer instance identifier in context.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, viewerIDContextKey{}, viewerID)
}

// ViewerIDFromContext returns the viewer instance identifier stored in context.
func ViewerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(viewerIDContextKey{}).(string)
	return value
}
