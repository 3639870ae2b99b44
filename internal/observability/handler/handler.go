package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/access"
	"aegis/internal/observability/models"
	tenantmodels "aegis/internal/tenant/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Service is the observability surface the handler consumes. Summarize may
// be the raw aggregator or the cached one; the handler cannot tell.
type Service interface {
	Summarize(ctx context.Context, scope models.Scope) (*models.Summary, error)
}

// Ingester accepts log rows. Separate from Service so a cached summarizer
// can sit in front of reads without intercepting writes.
type Ingester interface {
	RecordEntry(ctx context.Context, entry *models.LogEntry) error
}

// Invalidator drops cached summaries after ingest. Optional.
type Invalidator interface {
	Invalidate(ctx context.Context, scope models.Scope)
}

type TenantResolver interface {
	Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*tenantmodels.Tenant, error)
}

type Handler struct {
	service     Service
	ingester    Ingester
	invalidator Invalidator
	resolver    TenantResolver
	logger      *slog.Logger
}

func New(service Service, ingester Ingester, invalidator Invalidator, resolver TenantResolver, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		ingester:    ingester,
		invalidator: invalidator,
		resolver:    resolver,
		logger:      logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/observability/summary", h.HandleSummary)
	r.Post("/v1/observability/logs", h.HandleIngest)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (models.Scope, bool) {
	ctx := r.Context()
	tenant, err := h.resolver.Resolve(ctx, r.Header.Get("X-Tenant-ID"), requestcontext.OrgID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return models.Scope{}, false
	}

	scope := models.Scope{TenantID: tenant.ID}
	if raw := r.URL.Query().Get("application_id"); raw != "" {
		appID, err := domain.ParseApplicationID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return models.Scope{}, false
		}
		scope.ApplicationID = &appID
	}
	for param, dst := range map[string]**time.Time{"from": &scope.From, "to": &scope.To} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s timestamp", param))
			return models.Scope{}, false
		}
		*dst = &t
	}
	return scope, true
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !access.Allowed(requestcontext.Role(ctx), access.PermObservabilityRead) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role does not permit observability reads"))
		return
	}

	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summarize(ctx, scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type ingestRequest struct {
	ApplicationID *string `json:"application_id"`
	PolicyID      *string `json:"policy_id"`
	Path          string  `json:"path"`
	StatusCode    *int    `json:"status_code"`
	LatencyMs     *int64  `json:"latency_ms"`
	Model         string  `json:"model"`
}

func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[ingestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry := &models.LogEntry{
		TenantID:   scope.TenantID,
		Path:       req.Path,
		StatusCode: req.StatusCode,
		LatencyMs:  req.LatencyMs,
		Model:      req.Model,
	}
	if req.ApplicationID != nil {
		appID, err := domain.ParseApplicationID(*req.ApplicationID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entry.ApplicationID = &appID
	}
	if req.PolicyID != nil {
		policyID, err := domain.ParsePolicyID(*req.PolicyID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entry.PolicyID = &policyID
	}

	if err := h.ingester.RecordEntry(ctx, entry); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx, scope)
	}
	httputil.WriteJSON(w, http.StatusAccepted, entry)
}
