package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/audit"
	"aegis/internal/guardrail/models"
	"aegis/internal/guardrail/store"
	"aegis/internal/platform/logger"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func memberCtx() context.Context {
	return requestcontext.WithRole(context.Background(), domain.RoleMember)
}

func TestCreate_AppliesDefaults(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	guardrail, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "pii-redactor", Tier: intPtr(2)})
	require.NoError(t, err)

	assert.Equal(t, "v1", guardrail.Version)
	assert.Equal(t, domain.FallbackSkip, guardrail.Fallback)
	assert.True(t, guardrail.Enabled)
	assert.NotNil(t, guardrail.Params)
	assert.Equal(t, tenantID, guardrail.TenantID)
}

func TestCreate_RequiresKeyAndTier(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	_, err := svc.Create(memberCtx(), tenantID, models.Definition{Tier: intPtr(1)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Create(memberCtx(), tenantID, models.Definition{Key: "toxicity"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCreate_ViewerIsForbidden(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	ctx := requestcontext.WithRole(context.Background(), domain.RoleViewer)

	_, err := svc.Create(ctx, domain.NewTenantID(), models.Definition{Key: "toxicity", Tier: intPtr(1)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestCreate_DuplicateKeyVersionConflicts(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	_, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "toxicity", Tier: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(memberCtx(), tenantID, models.Definition{Key: "toxicity", Tier: intPtr(1)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreate_ValidatesDefaultParamsAgainstSchema(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"threshold": {"type": "number", "minimum": 0, "maximum": 1}},
		"required": ["threshold"]
	}`)

	_, err := svc.Create(memberCtx(), tenantID, models.Definition{
		Key:          "toxicity",
		Tier:         intPtr(1),
		ParamsSchema: schema,
		Params:       map[string]any{"threshold": 1.5},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	guardrail, err := svc.Create(memberCtx(), tenantID, models.Definition{
		Key:          "toxicity",
		Tier:         intPtr(1),
		ParamsSchema: schema,
		Params:       map[string]any{"threshold": 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.8, guardrail.Params["threshold"])
}

func TestCreate_EmitsAuditEvent(t *testing.T) {
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, logger.New(), nil)
	svc := New(store.NewInMemoryStore(), WithRecorder(recorder))
	tenantID := domain.NewTenantID()

	guardrail, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "jailbreak-detector", Tier: intPtr(3)})
	require.NoError(t, err)

	events, err := auditStore.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionGuardrailCreated, events[0].Action)
	assert.Equal(t, guardrail.ID.String(), events[0].TargetID)
	assert.Equal(t, "jailbreak-detector", events[0].Metadata["key"])
	assert.Equal(t, "v1", events[0].Metadata["version"])
}

func TestList_ExcludesDeletedOrderedByRecency(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	first, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "a", Tier: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(memberCtx(), tenantID, models.Definition{Key: "b", Tier: intPtr(1)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(memberCtx(), tenantID, first.ID))

	listed, err := svc.List(memberCtx(), tenantID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "b", listed[0].Key)
}

func TestList_TenantIsolation(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantA := domain.NewTenantID()
	tenantB := domain.NewTenantID()

	_, err := svc.Create(memberCtx(), tenantA, models.Definition{Key: "a-only", Tier: intPtr(1)})
	require.NoError(t, err)

	listed, err := svc.List(memberCtx(), tenantB)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUpdate_PartialFields(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	created, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "toxicity", Tier: intPtr(1)})
	require.NoError(t, err)

	fallback := domain.FallbackBlock
	updated, err := svc.Update(memberCtx(), tenantID, created.ID, Update{
		Tier:     intPtr(4),
		Fallback: &fallback,
		Enabled:  boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Tier)
	assert.Equal(t, domain.FallbackBlock, updated.Fallback)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "toxicity", updated.Key)
}

func TestResolveKeys_UnknownKeysAbsent(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	created, err := svc.Create(memberCtx(), tenantID, models.Definition{Key: "toxicity", Tier: intPtr(1)})
	require.NoError(t, err)

	resolved, err := svc.ResolveKeys(context.Background(), tenantID, []string{"toxicity", "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.GuardrailID{"toxicity": created.ID}, resolved)
}
