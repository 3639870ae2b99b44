package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	obsmetrics "aegis/internal/observability/metrics"
	"aegis/internal/observability/models"
)

// Summarizer is the read side the cache fronts.
type Summarizer interface {
	Summarize(ctx context.Context, scope models.Scope) (*models.Summary, error)
}

// CachedSummarizer memoizes summaries in Redis with a bounded TTL. Staleness
// is capped by the TTL; ingest calls Invalidate so a tenant watching a
// dashboard after pushing traffic sees its rows within one round trip.
// Singleflight collapses concurrent misses for the same scope into one
// store-side recomputation.
type CachedSummarizer struct {
	inner   Summarizer
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *obsmetrics.Metrics
}

func NewCachedSummarizer(inner Summarizer, client *redis.Client, ttl time.Duration, logger *slog.Logger, metrics *obsmetrics.Metrics) *CachedSummarizer {
	return &CachedSummarizer{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedSummarizer) Summarize(ctx context.Context, scope models.Scope) (*models.Summary, error) {
	key := cacheKey(scope)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var summary models.Summary
		if err := json.Unmarshal(raw, &summary); err == nil {
			if c.metrics != nil {
				c.metrics.IncrementCacheHit()
			}
			return &summary, nil
		}
		// Unparseable cache entries are dropped, not served.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down degrades to recomputation, never to failure.
		c.logger.WarnContext(ctx, "summary cache read failed", "error", err)
	}
	if c.metrics != nil {
		c.metrics.IncrementCacheMiss()
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		summary, err := c.inner.Summarize(ctx, scope)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(summary); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.WarnContext(ctx, "summary cache write failed", "error", err)
			}
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Summary), nil
}

// Invalidate drops every cached summary for the tenant. Called after ingest.
func (c *CachedSummarizer) Invalidate(ctx context.Context, scope models.Scope) {
	pattern := fmt.Sprintf("aegis:obs:summary:%s:*", scope.TenantID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "summary cache invalidation failed", "error", err)
	}
}

func cacheKey(scope models.Scope) string {
	app := "all"
	if scope.ApplicationID != nil {
		app = scope.ApplicationID.String()
	}
	from, to := "-", "-"
	if scope.From != nil {
		from = scope.From.UTC().Format(time.RFC3339)
	}
	if scope.To != nil {
		to = scope.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("aegis:obs:summary:%s:%s:%s:%s", scope.TenantID, app, from, to)
}
