package core

import "context"

type contextKey string

const (
	ctxKeyOwner    contextKey = "job_owner"
	ctxKeyClientIP contextKey = "client_ip"
)

// ContextWithOwner records the hashed API key that owns the request's jobs.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKeyOwner, owner)
}

// OwnerFromContext returns the job owner, or "" when auth is disabled.
func OwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOwner).(string); ok {
		return v
	}
	return ""
}

// ContextWithClientIP adds the resolved client IP for logging.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext extracts the client IP set by the real-IP middleware.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}
