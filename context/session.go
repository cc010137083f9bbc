package context

import (
	"context"
)

type contextkey string

const (
	sessionKey contextkey = "widget_session"
)

// ContextSetSession binds the widget session id to ctx.
func ContextSetSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextGetSession retrieves the widget session id from request context.
// Returns "" if the session middleware did not run.
func ContextGetSession(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}
