package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/policy/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

type fakeResolver struct {
	known map[string]domain.GuardrailID
	err   error
}

func (f *fakeResolver) ResolveKeys(_ context.Context, _ domain.TenantID, keys []string) (map[string]domain.GuardrailID, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.GuardrailID)
	for _, key := range keys {
		if id, ok := f.known[key]; ok {
			out[key] = id
		}
	}
	return out, nil
}

func guard(key string) models.GraphNode {
	return models.GraphNode{Kind: models.NodeGuard, Key: key}
}

func TestCompose_OrderIndicesContiguousPerPhase(t *testing.T) {
	resolver := &fakeResolver{known: map[string]domain.GuardrailID{
		"pii":       domain.NewGuardrailID(),
		"toxicity":  domain.NewGuardrailID(),
		"jailbreak": domain.NewGuardrailID(),
	}}
	composer := NewComposer(resolver)

	comp, err := composer.Compose(context.Background(), domain.NewTenantID(), models.Graphs{
		domain.PhaseInput:  {guard("pii"), guard("jailbreak"), guard("toxicity")},
		domain.PhaseOutput: {guard("toxicity"), guard("pii")},
	})
	require.NoError(t, err)
	require.Len(t, comp.Links, 5)

	byPhase := make(map[domain.Phase][]int)
	for _, link := range comp.Links {
		byPhase[link.Phase] = append(byPhase[link.Phase], link.OrderIndex)
	}
	assert.Equal(t, []int{0, 1, 2}, byPhase[domain.PhaseInput])
	assert.Equal(t, []int{0, 1}, byPhase[domain.PhaseOutput])
	assert.Empty(t, comp.DroppedKeys)
}

func TestCompose_UnresolvableKeysDroppedAndReported(t *testing.T) {
	resolver := &fakeResolver{known: map[string]domain.GuardrailID{
		"pii": domain.NewGuardrailID(),
	}}
	composer := NewComposer(resolver)

	comp, err := composer.Compose(context.Background(), domain.NewTenantID(), models.Graphs{
		domain.PhaseInput: {guard("typo-one"), guard("pii"), guard("typo-two"), guard("typo-one")},
	})
	require.NoError(t, err)

	// The surviving link still starts at index zero: dropped nodes leave no
	// gaps in the ordering.
	require.Len(t, comp.Links, 1)
	assert.Equal(t, 0, comp.Links[0].OrderIndex)
	assert.Equal(t, []string{"typo-one", "typo-two"}, comp.DroppedKeys)
}

func TestCompose_StructuralNodesIgnored(t *testing.T) {
	resolver := &fakeResolver{known: map[string]domain.GuardrailID{
		"pii": domain.NewGuardrailID(),
	}}
	composer := NewComposer(resolver)

	comp, err := composer.Compose(context.Background(), domain.NewTenantID(), models.Graphs{
		domain.PhaseInput: {
			{Kind: models.NodeStructural, Key: "sequence"},
			guard("pii"),
			{Kind: models.NodeGuard}, // no key
		},
	})
	require.NoError(t, err)
	require.Len(t, comp.Links, 1)
	assert.Equal(t, 0, comp.Links[0].OrderIndex)
}

func TestCompose_EmptyLinkSetRejected(t *testing.T) {
	composer := NewComposer(&fakeResolver{})

	for name, graphs := range map[string]models.Graphs{
		"no graphs":           {},
		"only structural":     {domain.PhaseInput: {{Kind: models.NodeStructural}}},
		"all keys unresolved": {domain.PhaseInput: {guard("ghost")}},
		"empty phase lists":   {domain.PhaseInput: {}, domain.PhaseOutput: {}},
	} {
		_, err := composer.Compose(context.Background(), domain.NewTenantID(), graphs)
		require.Error(t, err, name)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNoGuardrails), name)
	}
}

func TestCompose_ResolverFailureIsInternal(t *testing.T) {
	composer := NewComposer(&fakeResolver{err: errors.New("store down")})

	_, err := composer.Compose(context.Background(), domain.NewTenantID(), models.Graphs{
		domain.PhaseInput: {guard("pii")},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestCompose_ParamsDefaultToEmptyMap(t *testing.T) {
	resolver := &fakeResolver{known: map[string]domain.GuardrailID{
		"pii": domain.NewGuardrailID(),
	}}
	composer := NewComposer(resolver)

	comp, err := composer.Compose(context.Background(), domain.NewTenantID(), models.Graphs{
		domain.PhaseToolArgs: {guard("pii")},
	})
	require.NoError(t, err)
	require.Len(t, comp.Links, 1)
	assert.NotNil(t, comp.Links[0].Params)
	assert.True(t, comp.Links[0].Enabled)
}
