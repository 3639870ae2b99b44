package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/platform/middleware"
	"aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

const signingKey = "test-signing-key"

type echoHandler struct {
	gotUser domain.UserID
	gotOrg  domain.TenantID
	gotRole domain.Role
}

func (h *echoHandler) Register(r chi.Router) {
	r.Get("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		h.gotUser = requestcontext.UserID(ctx)
		h.gotOrg = requestcontext.OrgID(ctx)
		h.gotRole = requestcontext.Role(ctx)
		w.WriteHeader(http.StatusOK)
	})
}

func signToken(t *testing.T, userID domain.UserID, orgID domain.TenantID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"org":  orgID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err)
	return signed
}

func testRouter(h *echoHandler) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(middleware.NewHMACValidator(signingKey), logger, h)
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(testRouter(&echoHandler{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/echo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Authentication required")
}

func TestRouter_RejectsInvalidToken(t *testing.T) {
	srv := httptest.NewServer(testRouter(&echoHandler{}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_InjectsClaims(t *testing.T) {
	h := &echoHandler{}
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	userID := domain.NewUserID()
	orgID := domain.NewTenantID()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, orgID, "admin"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, userID, h.gotUser)
	assert.Equal(t, orgID, h.gotOrg)
	assert.Equal(t, domain.RoleAdmin, h.gotRole)
}

func TestRouter_OpenEndpoints(t *testing.T) {
	srv := httptest.NewServer(testRouter(&echoHandler{}))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
