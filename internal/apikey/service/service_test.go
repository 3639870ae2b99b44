package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/apikey/store"
	"aegis/internal/audit"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

func adminCtx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), domain.NewUserID())
	return requestcontext.WithRole(ctx, domain.RoleAdmin)
}

func TestIssue_PlaintextShapeAndStoredDigest(t *testing.T) {
	svc := New(store.NewInMemoryStore(), "live")
	tenantID := domain.NewTenantID()

	key, secret, err := svc.Issue(adminCtx(), tenantID, "ci-pipeline")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, "sk_live_"))
	assert.Equal(t, secret[:12], key.Prefix)
	assert.NotContains(t, key.Hash, secret)
	assert.Len(t, key.Hash, 64)
	assert.True(t, key.Matches(secret))
}

func TestIssue_MemberForbidden(t *testing.T) {
	svc := New(store.NewInMemoryStore(), "live")
	ctx := requestcontext.WithRole(context.Background(), domain.RoleMember)

	_, _, err := svc.Issue(ctx, domain.NewTenantID(), "ci-pipeline")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestIssue_EmitsAudit(t *testing.T) {
	events := audit.NewInMemoryStore()
	svc := New(store.NewInMemoryStore(), "test", WithRecorder(audit.NewRecorder(events, nil, nil)))
	tenantID := domain.NewTenantID()

	key, _, err := svc.Issue(adminCtx(), tenantID, "ci-pipeline")
	require.NoError(t, err)

	recorded, err := events.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, audit.ActionAPIKeyCreated, recorded[0].Action)
	assert.Equal(t, key.Prefix, recorded[0].Metadata["prefix"])
	// The plaintext never reaches the audit trail.
	for _, v := range recorded[0].Metadata {
		s, ok := v.(string)
		if ok {
			assert.False(t, strings.HasPrefix(s, "sk_test_") && len(s) > 12)
		}
	}
}

func TestVerify_RoundTripAndRevocation(t *testing.T) {
	svc := New(store.NewInMemoryStore(), "live")
	tenantID := domain.NewTenantID()

	key, secret, err := svc.Issue(adminCtx(), tenantID, "ci-pipeline")
	require.NoError(t, err)

	verified, err := svc.Verify(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, key.ID, verified.ID)
	assert.Equal(t, tenantID, verified.TenantID)

	require.NoError(t, svc.Revoke(adminCtx(), tenantID, key.ID))

	_, err = svc.Verify(context.Background(), secret)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerify_UnknownSecret(t *testing.T) {
	svc := New(store.NewInMemoryStore(), "live")

	_, err := svc.Verify(context.Background(), "sk_live_nonsense")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRevoke_TenantScoped(t *testing.T) {
	svc := New(store.NewInMemoryStore(), "live")
	tenantA := domain.NewTenantID()
	tenantB := domain.NewTenantID()

	key, _, err := svc.Issue(adminCtx(), tenantA, "ci-pipeline")
	require.NoError(t, err)

	err = svc.Revoke(adminCtx(), tenantB, key.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
