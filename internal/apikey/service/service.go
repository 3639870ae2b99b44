package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"aegis/internal/access"
	"aegis/internal/apikey/models"
	"aegis/internal/audit"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// KeyStore persists API key records. FindByHash is the verification path and
// must be indexable on the digest.
type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.APIKey, error)
	FindByHash(ctx context.Context, hash string) (*models.APIKey, error)
	Revoke(ctx context.Context, tenantID domain.TenantID, id domain.APIKeyID) error
}

type Service struct {
	keys     KeyStore
	env      string
	logger   *slog.Logger
	recorder *audit.Recorder
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func New(keys KeyStore, env string, opts ...Option) *Service {
	s := &Service{keys: keys, env: env, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a key and returns the plaintext secret exactly once. The
// caller displays it; this service forgets it.
func (s *Service) Issue(ctx context.Context, tenantID domain.TenantID, name string) (*models.APIKey, string, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermAPIKeyManage) {
		return nil, "", dErrors.New(dErrors.CodeForbidden, "role does not permit api key management")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", dErrors.New(dErrors.CodeValidation, "api key name is required")
	}

	key, plaintext, err := models.Generate(tenantID, name, s.env, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist api key")
	}

	s.recorder.Record(ctx, tenantID, audit.ActionAPIKeyCreated, "apikey", key.ID.String(),
		map[string]any{"name": key.Name, "prefix": key.Prefix})
	return key, plaintext, nil
}

// List returns key records, prefix only. Hashes never leave the service.
func (s *Service) List(ctx context.Context, tenantID domain.TenantID) ([]*models.APIKey, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermAPIKeyManage) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit api key management")
	}
	keys, err := s.keys.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list api keys")
	}
	return keys, nil
}

func (s *Service) Revoke(ctx context.Context, tenantID domain.TenantID, id domain.APIKeyID) error {
	if !access.Allowed(requestcontext.Role(ctx), access.PermAPIKeyManage) {
		return dErrors.New(dErrors.CodeForbidden, "role does not permit api key management")
	}
	if err := s.keys.Revoke(ctx, tenantID, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "api key not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke api key")
	}
	s.recorder.Record(ctx, tenantID, audit.ActionAPIKeyRevoked, "apikey", id.String(), nil)
	return nil
}

// Verify resolves a plaintext secret to its owning tenant. Revoked and
// unknown keys are indistinguishable to the caller.
func (s *Service) Verify(ctx context.Context, plaintext string) (*models.APIKey, error) {
	key, err := s.keys.FindByHash(ctx, models.HashSecret(plaintext))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify api key")
	}
	if key.Revoked() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	return key, nil
}
