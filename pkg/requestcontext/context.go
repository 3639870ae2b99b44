// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets these; services read them. Keeping
// the package free of net/http lets services import only what they need.
package requestcontext

import (
	"context"
	"time"

	"aegis/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	orgIDKey       struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	bearerTokenKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) domain.UserID {
	if v, ok := ctx.Value(userIDKey{}).(domain.UserID); ok {
		return v
	}
	return domain.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, id domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// OrgID retrieves the caller's organization id (the tenant the identity
// provider bound the caller to). Tenant resolution compares against this.
func OrgID(ctx context.Context) domain.TenantID {
	if v, ok := ctx.Value(orgIDKey{}).(domain.TenantID); ok {
		return v
	}
	return domain.TenantID{}
}

// WithOrgID injects the caller's organization id into the context.
func WithOrgID(ctx context.Context, id domain.TenantID) context.Context {
	return context.WithValue(ctx, orgIDKey{}, id)
}

// Role retrieves the caller's role claim. Empty when unauthenticated.
func Role(ctx context.Context) domain.Role {
	if v, ok := ctx.Value(roleKey{}).(domain.Role); ok {
		return v
	}
	return ""
}

// WithRole injects the caller's role into the context.
func WithRole(ctx context.Context, role domain.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RequestID retrieves the request correlation id.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// BearerToken retrieves the raw bearer token so outbound calls (the policy
// compiler) can forward the caller's Authorization header.
func BearerToken(ctx context.Context) string {
	if v, ok := ctx.Value(bearerTokenKey{}).(string); ok {
		return v
	}
	return ""
}

// WithBearerToken injects the raw bearer token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// ClientIP retrieves the client IP address.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent retrieves the parsed User-Agent family name.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that skip the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time, so a logical operation observes one clock
// reading and tests are deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
