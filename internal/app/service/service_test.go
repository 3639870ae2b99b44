package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/app/store"
	"aegis/internal/audit"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

func adminCtx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), domain.NewUserID())
	return requestcontext.WithRole(ctx, domain.RoleAdmin)
}

func TestCreate_DefaultsAndAudit(t *testing.T) {
	events := audit.NewInMemoryStore()
	svc := New(store.NewInMemoryStore(), WithRecorder(audit.NewRecorder(events, nil, nil)))
	tenantID := domain.NewTenantID()

	app, err := svc.Create(adminCtx(), tenantID, "chat-frontend", "")
	require.NoError(t, err)
	assert.Equal(t, "production", app.Environment)
	assert.False(t, app.LastModifiedAt.IsZero())

	recorded, err := events.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, audit.ActionApplicationCreated, recorded[0].Action)
}

func TestCreate_ViewerForbidden(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	ctx := requestcontext.WithRole(context.Background(), domain.RoleViewer)

	_, err := svc.Create(ctx, domain.NewTenantID(), "chat-frontend", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestBind_TouchesLastModified(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	app, err := svc.Create(adminCtx(), tenantID, "chat-frontend", "staging")
	require.NoError(t, err)
	before := app.LastModifiedAt

	time.Sleep(time.Millisecond)
	require.NoError(t, svc.Bind(adminCtx(), tenantID, app.ID, domain.NewPolicyID()))

	refreshed, err := svc.Get(adminCtx(), tenantID, app.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.LastModifiedAt.After(before))
}

func TestBind_DuplicateIsConflict(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	app, err := svc.Create(adminCtx(), tenantID, "chat-frontend", "")
	require.NoError(t, err)
	policyID := domain.NewPolicyID()

	require.NoError(t, svc.Bind(adminCtx(), tenantID, app.ID, policyID))
	err = svc.Bind(adminCtx(), tenantID, app.ID, policyID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestBind_UnknownApplication(t *testing.T) {
	svc := New(store.NewInMemoryStore())

	err := svc.Bind(adminCtx(), domain.NewTenantID(), domain.NewApplicationID(), domain.NewPolicyID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUnbind_RemovesAndReportsBoundState(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantID := domain.NewTenantID()

	app, err := svc.Create(adminCtx(), tenantID, "chat-frontend", "")
	require.NoError(t, err)
	policyID := domain.NewPolicyID()

	require.NoError(t, svc.Bind(adminCtx(), tenantID, app.ID, policyID))
	bound, err := svc.IsPolicyBound(adminCtx(), tenantID, policyID)
	require.NoError(t, err)
	assert.True(t, bound)

	require.NoError(t, svc.Unbind(adminCtx(), tenantID, app.ID, policyID))
	bound, err = svc.IsPolicyBound(adminCtx(), tenantID, policyID)
	require.NoError(t, err)
	assert.False(t, bound)

	err = svc.Unbind(adminCtx(), tenantID, app.ID, policyID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestBindings_TenantIsolation(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	tenantA := domain.NewTenantID()
	tenantB := domain.NewTenantID()

	app, err := svc.Create(adminCtx(), tenantA, "chat-frontend", "")
	require.NoError(t, err)
	policyID := domain.NewPolicyID()
	require.NoError(t, svc.Bind(adminCtx(), tenantA, app.ID, policyID))

	// The same policy id queried under another tenant reports unbound.
	bound, err := svc.IsPolicyBound(adminCtx(), tenantB, policyID)
	require.NoError(t, err)
	assert.False(t, bound)

	_, err = svc.Get(adminCtx(), tenantB, app.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
