// Package reqctx carries the per-request actor/session identifiers through
// the executor via context.Context, rather than as ambient globals, so the
// core stays testable under concurrent requests issued by distinct actors.
package reqctx

import "context"

type ctxKey int

const (
	actorKey ctxKey = iota
	sessionKey
)

// WithActor returns a context carrying actor as the request's actor
// identity.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// WithSession returns a context carrying sessionID as the request's
// session identity.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// Actor returns the actor identity propagated on ctx, or "unknown" if
// none was set.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// Session returns the session identity propagated on ctx, or "" if none
// was set.
func Session(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey).(string)
	return v
}
