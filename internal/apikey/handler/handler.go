package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/apikey/models"
	tenantmodels "aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

type Service interface {
	Issue(ctx context.Context, tenantID domain.TenantID, name string) (*models.APIKey, string, error)
	List(ctx context.Context, tenantID domain.TenantID) ([]*models.APIKey, error)
	Revoke(ctx context.Context, tenantID domain.TenantID, id domain.APIKeyID) error
}

type TenantResolver interface {
	Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*tenantmodels.Tenant, error)
}

type Handler struct {
	service  Service
	resolver TenantResolver
	logger   *slog.Logger
}

func New(service Service, resolver TenantResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/apikeys", h.HandleList)
	r.Post("/v1/apikeys", h.HandleIssue)
	r.Delete("/v1/apikeys/{id}", h.HandleRevoke)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (domain.TenantID, bool) {
	ctx := r.Context()
	tenant, err := h.resolver.Resolve(ctx, r.Header.Get("X-Tenant-ID"), requestcontext.OrgID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.TenantID{}, false
	}
	return tenant.ID, true
}

type issueRequest struct {
	Name string `json:"name"`
}

// issueResponse is the only place the plaintext secret ever appears.
type issueResponse struct {
	Key    *models.APIKey `json:"key"`
	Secret string         `json:"secret"`
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[issueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	key, secret, err := h.service.Issue(ctx, tenantID, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "api key issued",
		"request_id", requestID,
		"tenant_id", tenantID,
		"key_id", key.ID,
		"prefix", key.Prefix,
	)
	httputil.WriteJSON(w, http.StatusCreated, issueResponse{Key: key, Secret: secret})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	keys, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseAPIKeyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), tenantID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
