// Package compiler is the HTTP client for the external Policy Compiler
// service, which turns a declarative policy description into an executable
// guardrail pipeline.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aegis/internal/policy/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

// Request is the compile request body. Field names are the compiler's wire
// contract, not this service's internal naming.
type Request struct {
	Name        string                                      `json:"name"`
	Description string                                      `json:"description"`
	Version     string                                      `json:"version"`
	Guardrails  []GuardrailLink                             `json:"guardrails"`
	Composition map[domain.Phase]domain.CompositionStrategy `json:"composition"`
	Status      string                                      `json:"status"`
	IsActive    bool                                        `json:"is_active"`
}

type GuardrailLink struct {
	GuardrailID string         `json:"guardrail_id"`
	Phase       string         `json:"phase"`
	OrderIndex  int            `json:"order_index"`
	Params      map[string]any `json:"params"`
	Enabled     bool           `json:"enabled"`
}

// Result carries the compiled artifact. The compiler persists its own
// server-side state; this is only what we store locally.
type Result struct {
	Artifact json.RawMessage `json:"artifact"`
}

// Client calls the external Policy Compiler. Timeouts are classified as
// CompilationFailed rather than a distinct kind, keeping the error taxonomy
// small.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("aegis/policy/compiler"),
	}
}

// Compile submits a policy for compilation. Non-2xx responses surface the
// compiler's response body verbatim: it usually names the offending
// guardrail or parameter and the user needs to see it. Failures are never
// retried automatically.
func (c *Client) Compile(ctx context.Context, tenantSlug string, actorID domain.UserID, links []models.Link, composition map[domain.Phase]domain.CompositionStrategy, name, description, version string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "compiler.Compile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tenant.slug", tenantSlug),
			attribute.String("policy.name", name),
			attribute.Int("policy.links", len(links)),
		),
	)
	defer span.End()

	body := Request{
		Name:        name,
		Description: description,
		Version:     version,
		Guardrails:  make([]GuardrailLink, 0, len(links)),
		Composition: composition,
		Status:      string(domain.PolicyStatusDraft),
		IsActive:    false,
	}
	for _, link := range links {
		body.Guardrails = append(body.Guardrails, GuardrailLink{
			GuardrailID: link.GuardrailID.String(),
			Phase:       string(link.Phase),
			OrderIndex:  link.OrderIndex,
			Params:      link.Params,
			Enabled:     link.Enabled,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode compile request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/policies", bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build compile request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantSlug)
	req.Header.Set("X-User-ID", actorID.String())
	if token := requestcontext.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeCompilation, "policy compiler unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeCompilation, "failed to read compiler response")
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, fmt.Sprintf("compiler returned %d", resp.StatusCode))
		// The compiler's error text is preserved verbatim for display.
		return nil, dErrors.New(dErrors.CodeCompilation, string(raw))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCompilation, "compiler returned an unparseable response")
	}
	return &result, nil
}
