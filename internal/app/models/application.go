package models

import (
	"strings"
	"time"

	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// Application is a tenant's integration point: the thing policies get bound
// to. LastModifiedAt moves on every binding change so downstream pollers can
// detect enforcement drift without diffing binding sets.
type Application struct {
	ID             domain.ApplicationID `json:"id"`
	TenantID       domain.TenantID      `json:"tenant_id"`
	Name           string               `json:"name"`
	Environment    string               `json:"environment"`
	LastModifiedAt time.Time            `json:"last_modified_at"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Binding activates one policy for one application. Independent of the
// policy lifecycle: a tenant stages draft policies and binds them later.
type Binding struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	PolicyID      domain.PolicyID      `json:"policy_id"`
	CreatedAt     time.Time            `json:"created_at"`
}

func NewApplication(tenantID domain.TenantID, name, environment string, now time.Time) (*Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "application name is required")
	}
	if environment == "" {
		environment = "production"
	}
	return &Application{
		ID:             domain.NewApplicationID(),
		TenantID:       tenantID,
		Name:           name,
		Environment:    environment,
		LastModifiedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
