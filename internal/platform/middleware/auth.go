package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

// Claims are the identity assertions this core consumes from the external
// identity provider: who is calling (sub), which organization they belong to
// (org), and their role claim.
type Claims struct {
	UserID domain.UserID
	OrgID  domain.TenantID
	Role   domain.Role
}

// TokenValidator verifies a bearer token and extracts claims.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// HMACValidator validates HS256 tokens signed with a shared key.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(key string) *HMACValidator {
	return &HMACValidator{key: []byte(key)}
}

func (v *HMACValidator) ValidateToken(token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	userID, err := domain.ParseUserID(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid sub claim: %w", err)
	}
	org, _ := claims["org"].(string)
	orgID, err := domain.ParseTenantID(org)
	if err != nil {
		return nil, fmt.Errorf("invalid org claim: %w", err)
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return nil, fmt.Errorf("missing role claim")
	}
	return &Claims{UserID: userID, OrgID: orgID, Role: domain.Role(role)}, nil
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and injects the
// caller's identity into the request context. The raw token is retained so
// the compiler client can forward it.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := r.Context()
			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithOrgID(ctx, claims.OrgID)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			ctx = requestcontext.WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
