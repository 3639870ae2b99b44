package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"aegis/pkg/domain"
)

// Policy is a tenant-scoped, versioned bundle of guardrail links across all
// phases. Name + version are unique per tenant. The compiled artifact is
// derived data: it is regenerated whenever the link set changes, never
// hand-edited.
type Policy struct {
	ID          domain.PolicyID                                `json:"id"`
	TenantID    domain.TenantID                                `json:"tenant_id"`
	Name        string                                         `json:"name"`
	Description string                                         `json:"description,omitempty"`
	Version     string                                         `json:"version"`
	Status      domain.PolicyStatus                            `json:"status"`
	Composition map[domain.Phase]domain.CompositionStrategy    `json:"composition"`
	Artifact    json.RawMessage                                `json:"artifact,omitempty"`
	ContentHash string                                         `json:"content_hash"`
	Links       []Link                                         `json:"links"`
	CreatedAt   time.Time                                      `json:"created_at"`
	UpdatedAt   time.Time                                      `json:"updated_at"`
}

// Link is one (policy, guardrail, phase) join row. OrderIndex is contiguous
// from zero and unique within (policy, phase).
type Link struct {
	GuardrailID domain.GuardrailID `json:"guardrail_id"`
	Phase       domain.Phase       `json:"phase"`
	OrderIndex  int                `json:"order_index"`
	Params      map[string]any     `json:"params"`
	Threshold   *float64           `json:"threshold,omitempty"`
	Enabled     bool               `json:"enabled"`
}

// NodeKind distinguishes guard references from structural graph nodes.
type NodeKind string

const (
	NodeGuard      NodeKind = "guard"
	NodeStructural NodeKind = "structural"
)

// GraphNode is one entry in a user-authored composition graph: either a
// guard reference (a guardrail key plus overrides) or a structural node the
// composer ignores.
type GraphNode struct {
	Kind      NodeKind       `json:"kind"`
	Key       string         `json:"key,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Threshold *float64       `json:"threshold,omitempty"`
}

// Graphs maps each phase to its flat ordered node list.
type Graphs map[domain.Phase][]GraphNode

// ComputeContentHash derives the policy's content hash from its link set and
// artifact. Used for idempotence checks and audit trails: two policies with
// identical enforcement hash identically regardless of creation time.
func ComputeContentHash(links []Link, artifact json.RawMessage) string {
	sorted := make([]Link, len(links))
	copy(sorted, links)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Phase != sorted[j].Phase {
			return sorted[i].Phase < sorted[j].Phase
		}
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	h := sha256.New()
	for _, link := range sorted {
		fmt.Fprintf(h, "%s|%s|%d|%t;", link.GuardrailID, link.Phase, link.OrderIndex, link.Enabled)
		if raw, err := json.Marshal(link.Params); err == nil {
			h.Write(raw)
		}
	}
	h.Write(artifact)
	return hex.EncodeToString(h.Sum(nil))
}
