package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmodels "aegis/internal/app/models"
	appstore "aegis/internal/app/store"
	policymodels "aegis/internal/policy/models"
	policystore "aegis/internal/policy/store"
	"aegis/pkg/domain"
)

func TestStoreCatalogStats_CountsThroughBoundPolicies(t *testing.T) {
	ctx := context.Background()
	tenantID := domain.NewTenantID()
	apps := appstore.NewInMemoryStore()
	policies := policystore.NewInMemoryStore()

	sharedGuardrail := domain.NewGuardrailID()
	boundPolicy := &policymodels.Policy{
		ID:       domain.NewPolicyID(),
		TenantID: tenantID,
		Name:     "bound",
		Version:  "v1",
		Links: []policymodels.Link{
			{GuardrailID: sharedGuardrail, Phase: domain.PhaseInput},
			{GuardrailID: domain.NewGuardrailID(), Phase: domain.PhaseOutput},
		},
		CreatedAt: time.Now(),
	}
	unboundPolicy := &policymodels.Policy{
		ID:       domain.NewPolicyID(),
		TenantID: tenantID,
		Name:     "staged",
		Version:  "v1",
		Links: []policymodels.Link{
			{GuardrailID: domain.NewGuardrailID(), Phase: domain.PhaseInput},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, policies.Create(ctx, boundPolicy))
	require.NoError(t, policies.Create(ctx, unboundPolicy))

	app, err := appmodels.NewApplication(tenantID, "chat", "production", time.Now())
	require.NoError(t, err)
	require.NoError(t, apps.Create(ctx, app))
	require.NoError(t, apps.AddBinding(ctx, tenantID, appmodels.Binding{
		ApplicationID: app.ID,
		PolicyID:      boundPolicy.ID,
		CreatedAt:     time.Now(),
	}))

	stats := NewStoreCatalogStats(apps, policies)

	n, err := stats.DistinctBoundPolicies(ctx, tenantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Only guardrails reachable through bound policies count.
	n, err = stats.DistinctBoundGuardrails(ctx, tenantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = stats.DistinctBoundPolicies(ctx, tenantID, &app.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
