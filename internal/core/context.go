package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
	ctxKeyAccess    contextKey = "access"
)

// ContextWithIPAddress adds the client IP for audit logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the User-Agent for audit logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts the client IP.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts the User-Agent.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// ContextWithAccess stores the resolved caller.
func ContextWithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, ctxKeyAccess, a)
}

// AccessFromContext returns the resolved caller, or Anonymous.
func AccessFromContext(ctx context.Context) Access {
	if a, ok := ctx.Value(ctxKeyAccess).(Access); ok {
		return a
	}
	return Anonymous
}
