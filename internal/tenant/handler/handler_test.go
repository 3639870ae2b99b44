package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"aegis/internal/tenant/service"
	"aegis/internal/tenant/store"
	"aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

func TestCreateTenantViaHandler(t *testing.T) {
	router := newTenantRouter(t)

	body, _ := json.Marshal(map[string]string{"name": "Acme AI", "plan": "pro"})
	req := httptest.NewRequest(http.MethodPost, "/v1/tenants", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(callerCtx(req.Context(), domain.RoleAdmin, domain.TenantID{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating tenant, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode tenant response: %v", err)
	}
	if created.Slug != "acme-ai" {
		t.Fatalf("expected slug acme-ai, got %q", created.Slug)
	}

	// Fetch back by slug as the owning organization.
	org, err := domain.ParseTenantID(created.ID)
	if err != nil {
		t.Fatalf("response id is not a tenant id: %v", err)
	}
	getReq := httptest.NewRequest(http.MethodGet, "/v1/tenants/"+created.Slug, nil)
	getReq = getReq.WithContext(callerCtx(getReq.Context(), domain.RoleAdmin, org))
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching tenant, got %d", getRec.Code)
	}

	// A caller from a different organization must not resolve it.
	otherReq := httptest.NewRequest(http.MethodGet, "/v1/tenants/"+created.Slug, nil)
	otherReq = otherReq.WithContext(callerCtx(otherReq.Context(), domain.RoleAdmin, domain.NewTenantID()))
	otherRec := httptest.NewRecorder()
	router.ServeHTTP(otherRec, otherReq)
	if otherRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign organization, got %d", otherRec.Code)
	}
}

func TestCreateTenantViewerForbidden(t *testing.T) {
	router := newTenantRouter(t)

	body, _ := json.Marshal(map[string]string{"name": "Acme"})
	req := httptest.NewRequest(http.MethodPost, "/v1/tenants", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(callerCtx(req.Context(), domain.RoleViewer, domain.TenantID{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}
}

func TestGetTenantUnknownRef(t *testing.T) {
	router := newTenantRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/no-such-tenant", nil)
	req = req.WithContext(callerCtx(req.Context(), domain.RoleAdmin, domain.NewTenantID()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ref, got %d", rec.Code)
	}
}

func callerCtx(ctx context.Context, role domain.Role, org domain.TenantID) context.Context {
	ctx = requestcontext.WithUserID(ctx, domain.NewUserID())
	ctx = requestcontext.WithOrgID(ctx, org)
	return requestcontext.WithRole(ctx, role)
}

func newTenantRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(store.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}
