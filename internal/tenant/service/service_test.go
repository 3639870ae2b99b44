package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/tenant/models"
	"aegis/internal/tenant/store"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

func adminCtx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), domain.NewUserID())
	return requestcontext.WithRole(ctx, domain.RoleAdmin)
}

// conflictingStore forces the first n inserts to collide, regardless of slug.
type conflictingStore struct {
	*store.InMemoryStore
	remaining int
	attempted []string
}

func (s *conflictingStore) CreateIfSlugAvailable(ctx context.Context, tenant *models.Tenant) error {
	s.attempted = append(s.attempted, tenant.Slug)
	if s.remaining > 0 {
		s.remaining--
		return sentinel.ErrConflict
	}
	return s.InMemoryStore.CreateIfSlugAvailable(ctx, tenant)
}

func TestCreateTenant_SlugDerivedFromName(t *testing.T) {
	svc := New(store.NewInMemoryStore())

	tenant, err := svc.CreateTenant(adminCtx(), "Acme AI Governance", "pro")
	require.NoError(t, err)
	assert.Equal(t, "acme-ai-governance", tenant.Slug)
	assert.Equal(t, "pro", tenant.Plan)
	assert.False(t, tenant.ID.IsNil())
}

func TestCreateTenant_CollisionRetryAppendsSuffix(t *testing.T) {
	for _, collisions := range []int{1, 2, 4} {
		mem := &conflictingStore{InMemoryStore: store.NewInMemoryStore(), remaining: collisions}
		svc := New(mem)

		tenant, err := svc.CreateTenant(adminCtx(), "Acme", "")
		require.NoError(t, err, "collisions=%d", collisions)
		assert.Equal(t, models.SlugCandidate("acme", collisions), tenant.Slug)
	}
}

func TestCreateTenant_SlugExhaustedAfterFiveAttempts(t *testing.T) {
	mem := &conflictingStore{InMemoryStore: store.NewInMemoryStore(), remaining: 5}
	svc := New(mem)

	tenant, err := svc.CreateTenant(adminCtx(), "Acme", "")
	require.Error(t, err)
	assert.Nil(t, tenant)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSlugExhausted))
	assert.Equal(t, []string{"acme", "acme-1", "acme-2", "acme-3", "acme-4"}, mem.attempted)

	// No tenant may exist after exhaustion.
	_, lookupErr := mem.FindBySlug(context.Background(), "acme")
	assert.ErrorIs(t, lookupErr, sentinel.ErrNotFound)
}

func TestCreateTenant_ViewerForbidden(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	ctx := requestcontext.WithRole(context.Background(), domain.RoleViewer)

	_, err := svc.CreateTenant(ctx, "Acme", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestCreateTenant_RejectsEmptyName(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	_, err := svc.CreateTenant(adminCtx(), "   ", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSlugCandidate(t *testing.T) {
	assert.Equal(t, "acme", models.SlugCandidate("acme", 0))
	assert.Equal(t, "acme-3", models.SlugCandidate("acme", 3))
}

func TestResolve_ByIDAndBySlug(t *testing.T) {
	mem := store.NewInMemoryStore()
	svc := New(mem)

	created, err := svc.CreateTenant(adminCtx(), "Acme", "")
	require.NoError(t, err)

	byID, err := svc.Resolve(context.Background(), created.ID.String(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	bySlug, err := svc.Resolve(context.Background(), "acme", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)
}

func TestResolve_UnknownRefIsNotFound(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	_, err := svc.Resolve(context.Background(), "no-such-tenant", domain.NewTenantID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestResolve_OrganizationMismatchIsForbidden(t *testing.T) {
	mem := store.NewInMemoryStore()
	svc := New(mem)

	created, err := svc.CreateTenant(adminCtx(), "Acme", "")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), created.Slug, domain.NewTenantID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = svc.Resolve(context.Background(), created.Slug, domain.TenantID{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
