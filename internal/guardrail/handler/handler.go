package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/guardrail/models"
	guardrailsvc "aegis/internal/guardrail/service"
	tenantmodels "aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Service is the slice of the guardrail service the handler consumes.
type Service interface {
	Create(ctx context.Context, tenantID domain.TenantID, def models.Definition) (*models.Guardrail, error)
	List(ctx context.Context, tenantID domain.TenantID) ([]*models.Guardrail, error)
	Update(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID, update guardrailsvc.Update) (*models.Guardrail, error)
	Delete(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) error
}

// TenantResolver resolves the request's tenant scope header.
type TenantResolver interface {
	Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*tenantmodels.Tenant, error)
}

// Handler wires guardrail catalog endpoints.
type Handler struct {
	service  Service
	resolver TenantResolver
	logger   *slog.Logger
}

func New(service Service, resolver TenantResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/guardrails", h.HandleList)
	r.Post("/v1/guardrails", h.HandleCreate)
	r.Patch("/v1/guardrails/{id}", h.HandleUpdate)
	r.Delete("/v1/guardrails/{id}", h.HandleDelete)
}

// scope resolves the X-Tenant-ID header against the caller's organization.
// Absence of the header is indistinguishable from an unknown tenant.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (domain.TenantID, bool) {
	ctx := r.Context()
	tenant, err := h.resolver.Resolve(ctx, r.Header.Get("X-Tenant-ID"), requestcontext.OrgID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.TenantID{}, false
	}
	return tenant.ID, true
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	guardrails, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"guardrails": guardrails})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	def, ok := httputil.Decode[models.Definition](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	guardrail, err := h.service.Create(ctx, tenantID, def)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "guardrail created",
		"request_id", requestID,
		"tenant_id", tenantID,
		"guardrail_id", guardrail.ID,
		"key", guardrail.Key,
	)
	httputil.WriteJSON(w, http.StatusCreated, guardrail)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseGuardrailID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	update, ok := httputil.Decode[guardrailsvc.Update](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	guardrail, err := h.service.Update(ctx, tenantID, id, update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, guardrail)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseGuardrailID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, tenantID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
