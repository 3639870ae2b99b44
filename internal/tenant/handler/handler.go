package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/access"
	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Handler wires tenant endpoints to the tenant service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// Service is the slice of the tenant service the handler consumes.
type Service interface {
	CreateTenant(ctx context.Context, name, plan string) (*models.Tenant, error)
	Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*models.Tenant, error)
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts tenant endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/tenants", h.HandleCreate)
	r.Get("/v1/tenants/{ref}", h.HandleGet)
}

type createRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !access.Allowed(requestcontext.Role(ctx), access.PermTenantManage) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role does not permit tenant management"))
		return
	}

	req, ok := httputil.Decode[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenant, err := h.service.CreateTenant(ctx, req.Name, req.Plan)
	if err != nil {
		h.logger.WarnContext(ctx, "tenant creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tenant created",
		"request_id", requestID,
		"tenant_id", tenant.ID,
		"slug", tenant.Slug,
	)
	httputil.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := chi.URLParam(r, "ref")

	tenant, err := h.service.Resolve(ctx, ref, requestcontext.OrgID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}
