package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/app/models"
	tenantmodels "aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, tenantID domain.TenantID, name, environment string) (*models.Application, error)
	List(ctx context.Context, tenantID domain.TenantID) ([]*models.Application, error)
	Get(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) (*models.Application, error)
	Bind(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error
	Unbind(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error
	ListBindings(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]models.Binding, error)
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
	r.Get("/v1/applications", h.HandleList)
	r.Post("/v1/applications", h.HandleCreate)
	r.Get("/v1/applications/{id}", h.HandleGet)
	r.Get("/v1/applications/{id}/policy", h.HandleListBindings)
	r.Post("/v1/applications/{id}/policy", h.HandleBind)
	r.Delete("/v1/applications/{id}/policy/{policyID}", h.HandleUnbind)
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

type createRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.Create(ctx, tenantID, req.Name, req.Environment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application created",
		"request_id", requestID,
		"tenant_id", tenantID,
		"application_id", app.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	apps, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

type bindRequest struct {
	PolicyID string `json:"policy_id"`
}

func (h *Handler) HandleBind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[bindRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	policyID, err := domain.ParsePolicyID(req.PolicyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Bind(ctx, tenantID, appID, policyID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Unbind(r.Context(), tenantID, appID, policyID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListBindings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	appID, err := domain.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bindings, err := h.service.ListBindings(r.Context(), tenantID, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"bindings": bindings})
}
