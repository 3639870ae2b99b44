package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	obsmetrics "aegis/internal/observability/metrics"
	"aegis/internal/observability/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

const recentEntries = 3

// LogStore persists and reads request/decision log rows.
type LogStore interface {
	Append(ctx context.Context, entry *models.LogEntry) error
	ListInScope(ctx context.Context, scope models.Scope) ([]models.LogEntry, error)
}

// CatalogStats reports how many distinct policies and guardrails are bound
// in a scope. Implemented by an adapter over the application and policy
// stores; the aggregator itself never touches those tables.
type CatalogStats interface {
	DistinctBoundPolicies(ctx context.Context, tenantID domain.TenantID, appID *domain.ApplicationID) (int, error)
	DistinctBoundGuardrails(ctx context.Context, tenantID domain.TenantID, appID *domain.ApplicationID) (int, error)
}

// Aggregator computes observability summaries. It holds no state between
// calls: every summary is recomputed from the store, so it is safe to call
// concurrently and arbitrarily often. Caching belongs in the layer above.
type Aggregator struct {
	logs    LogStore
	catalog CatalogStats
	logger  *slog.Logger
	metrics *obsmetrics.Metrics
}

type Option func(a *Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func NewAggregator(logs LogStore, catalog CatalogStats, opts ...Option) *Aggregator {
	a := &Aggregator{logs: logs, catalog: catalog, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordEntry appends one log row. Used by the HTTP ingest route and the CLI.
func (a *Aggregator) RecordEntry(ctx context.Context, entry *models.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if err := a.logs.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append log entry")
	}
	if a.metrics != nil {
		a.metrics.IncrementIngested()
	}
	return nil
}

// Summarize computes decision counts, latency, and catalog breadth for the
// scope. The three reads are independent and run concurrently.
func (a *Aggregator) Summarize(ctx context.Context, scope models.Scope) (*models.Summary, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.ObserveSummarize(start)
		}
	}()

	var (
		entries    []models.LogEntry
		policies   int
		guardrails int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = a.logs.ListInScope(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		policies, err = a.catalog.DistinctBoundPolicies(gctx, scope.TenantID, scope.ApplicationID)
		return err
	})
	g.Go(func() error {
		var err error
		guardrails, err = a.catalog.DistinctBoundGuardrails(gctx, scope.TenantID, scope.ApplicationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate observability data")
	}

	summary := summarize(entries)
	summary.DistinctPolicies = policies
	summary.DistinctGuardrails = guardrails
	return summary, nil
}

// summarize is the pure aggregation core. 5xx rows are infrastructure
// failures, not decisions: excluded from allow, block, and total alike.
// Latency averages only over rows that actually measured latency.
func summarize(entries []models.LogEntry) *models.Summary {
	summary := &models.Summary{}
	modelSet := make(map[string]bool)

	var latencySum, latencyCount int64
	for _, e := range entries {
		if e.Model != "" {
			modelSet[e.Model] = true
		}
		if e.StatusCode == nil || *e.StatusCode >= 500 {
			continue
		}
		summary.TotalCount++
		if *e.StatusCode == 200 || *e.StatusCode == 201 {
			summary.AllowCount++
		}
		if e.LatencyMs != nil && *e.LatencyMs > 0 {
			latencySum += *e.LatencyMs
			latencyCount++
		}
	}
	summary.BlockCount = summary.TotalCount - summary.AllowCount
	if latencyCount > 0 {
		summary.AverageLatencyMs = int64(math.Round(float64(latencySum) / float64(latencyCount)))
	}
	summary.DistinctModels = len(modelSet)

	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentEntries {
		sorted = sorted[:recentEntries]
	}
	summary.Recent = sorted
	return summary
}
