package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/policy/models"
	policysvc "aegis/internal/policy/service"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Service is the slice of the policy service the handler consumes.
type Service interface {
	CreatePolicy(ctx context.Context, input policysvc.CreateInput) (*models.Policy, error)
	UpdatePolicy(ctx context.Context, input policysvc.UpdateInput) (*models.Policy, error)
	SetStatus(ctx context.Context, tenantRef string, id domain.PolicyID, target domain.PolicyStatus) (*models.Policy, error)
	DeletePolicy(ctx context.Context, tenantRef string, id domain.PolicyID) error
	GetPolicy(ctx context.Context, tenantRef string, id domain.PolicyID) (*models.Policy, error)
	ListPolicies(ctx context.Context, tenantRef string) ([]*models.Policy, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/policies", h.HandleList)
	r.Post("/v1/policies", h.HandleCreate)
	r.Get("/v1/policies/{id}", h.HandleGet)
	r.Patch("/v1/policies/{id}", h.HandleUpdate)
	r.Post("/v1/policies/{id}/status", h.HandleSetStatus)
	r.Delete("/v1/policies/{id}", h.HandleDelete)
}

type createRequest struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Version       string        `json:"version"`
	Graphs        models.Graphs `json:"graphs"`
	ApplicationID *string       `json:"application_id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	input := policysvc.CreateInput{
		TenantRef:   r.Header.Get("X-Tenant-ID"),
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Graphs:      req.Graphs,
	}
	if req.ApplicationID != nil {
		appID, err := domain.ParseApplicationID(*req.ApplicationID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		input.ApplicationID = &appID
	}

	policy, err := h.service.CreatePolicy(ctx, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy created",
		"request_id", requestID,
		"tenant_id", policy.TenantID,
		"policy_id", policy.ID,
		"name", policy.Name,
	)
	httputil.WriteJSON(w, http.StatusCreated, policy)
}

type updateRequest struct {
	Description *string       `json:"description"`
	Graphs      models.Graphs `json:"graphs"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[updateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	policy, err := h.service.UpdatePolicy(ctx, policysvc.UpdateInput{
		TenantRef:   r.Header.Get("X-Tenant-ID"),
		PolicyID:    id,
		Description: req.Description,
		Graphs:      req.Graphs,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[statusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	target, err := domain.ParsePolicyStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid policy status"))
		return
	}

	policy, err := h.service.SetStatus(ctx, r.Header.Get("X-Tenant-ID"), id, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policy, err := h.service.GetPolicy(r.Context(), r.Header.Get("X-Tenant-ID"), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.ListPolicies(r.Context(), r.Header.Get("X-Tenant-ID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeletePolicy(r.Context(), r.Header.Get("X-Tenant-ID"), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
