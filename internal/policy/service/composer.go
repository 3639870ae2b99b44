package service

import (
	"context"
	"sort"

	"aegis/internal/policy/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// KeyResolver batch-resolves guardrail keys to ids within one tenant.
// The guardrail service satisfies this.
type KeyResolver interface {
	ResolveKeys(ctx context.Context, tenantID domain.TenantID, keys []string) (map[string]domain.GuardrailID, error)
}

// Composer turns user-authored composition graphs into an ordered,
// per-phase guardrail link set.
type Composer struct {
	resolver KeyResolver
}

func NewComposer(resolver KeyResolver) *Composer {
	return &Composer{resolver: resolver}
}

// Composition is the composer's output: the concatenated link set plus the
// keys that failed to resolve. Dropped keys are reported, not silently
// swallowed — an empty link set caused by typos is otherwise easy to
// misdiagnose.
type Composition struct {
	Links       []models.Link
	DroppedKeys []string
}

// Compose extracts guard nodes per phase, resolves all referenced keys in one
// tenant-scoped batch lookup, and emits links preserving input order with
// contiguous order indices from zero per phase.
//
// Unresolvable keys are dropped from the link set (and reported). Structural
// nodes and guard nodes without a key are ignored. If the concatenated set is
// empty the composer fails: a policy with zero enforcement is never created.
func (c *Composer) Compose(ctx context.Context, tenantID domain.TenantID, graphs models.Graphs) (*Composition, error) {
	keySet := make(map[string]bool)
	for _, phase := range domain.Phases() {
		for _, node := range graphs[phase] {
			if node.Kind == models.NodeGuard && node.Key != "" {
				keySet[node.Key] = true
			}
		}
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}

	resolved := map[string]domain.GuardrailID{}
	if len(keys) > 0 {
		var err error
		resolved, err = c.resolver.ResolveKeys(ctx, tenantID, keys)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve guardrail keys")
		}
	}

	var links []models.Link
	droppedSet := make(map[string]bool)
	for _, phase := range domain.Phases() {
		orderIndex := 0
		for _, node := range graphs[phase] {
			if node.Kind != models.NodeGuard || node.Key == "" {
				continue
			}
			guardrailID, ok := resolved[node.Key]
			if !ok {
				droppedSet[node.Key] = true
				continue
			}
			params := node.Params
			if params == nil {
				params = map[string]any{}
			}
			links = append(links, models.Link{
				GuardrailID: guardrailID,
				Phase:       phase,
				OrderIndex:  orderIndex,
				Params:      params,
				Threshold:   node.Threshold,
				Enabled:     true,
			})
			orderIndex++
		}
	}

	dropped := make([]string, 0, len(droppedSet))
	for key := range droppedSet {
		dropped = append(dropped, key)
	}
	sort.Strings(dropped)

	if len(links) == 0 {
		return nil, dErrors.New(dErrors.CodeNoGuardrails, "no guardrails selected: the composition resolves to an empty enforcement set")
	}
	return &Composition{Links: links, DroppedKeys: dropped}, nil
}
