// Package domain holds typed identifiers and enumerations shared across
// modules. IDs are distinct types over uuid.UUID so the compiler rejects
// cross-entity assignment; a guardrail id can never be passed where a policy
// id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "aegis/pkg/domain-errors"
)

type (
	// TenantID identifies a tenant organization. Issued externally, opaque.
	TenantID uuid.UUID
	// UserID identifies an authenticated caller.
	UserID uuid.UUID
	// GuardrailID identifies a guardrail definition within a tenant.
	GuardrailID uuid.UUID
	// PolicyID identifies a policy bundle.
	PolicyID uuid.UUID
	// ApplicationID identifies an application a policy can be bound to.
	ApplicationID uuid.UUID
	// APIKeyID identifies an issued API key record.
	APIKeyID uuid.UUID
)

func (id TenantID) String() string      { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id GuardrailID) String() string   { return uuid.UUID(id).String() }
func (id PolicyID) String() string      { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id APIKeyID) String() string      { return uuid.UUID(id).String() }

// Ids travel through JSON and database rows as canonical UUID strings.
func (id TenantID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id GuardrailID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id APIKeyID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = TenantID(u)
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *GuardrailID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = GuardrailID(u)
	return nil
}

func (id *PolicyID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = PolicyID(u)
	return nil
}

func (id *ApplicationID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = ApplicationID(u)
	return nil
}

func (id *APIKeyID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = APIKeyID(u)
	return nil
}

func (id TenantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id GuardrailID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id APIKeyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: ids must be valid, non-empty,
// non-nil UUIDs. Rejecting uuid.Nil here keeps "zero value" and "real id"
// from ever colliding at a trust boundary.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw)
	return TenantID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	return UserID(u), err
}

func ParseGuardrailID(raw string) (GuardrailID, error) {
	u, err := parseUUID(raw)
	return GuardrailID(u), err
}

func ParsePolicyID(raw string) (PolicyID, error) {
	u, err := parseUUID(raw)
	return PolicyID(u), err
}

func ParseApplicationID(raw string) (ApplicationID, error) {
	u, err := parseUUID(raw)
	return ApplicationID(u), err
}

func ParseAPIKeyID(raw string) (APIKeyID, error) {
	u, err := parseUUID(raw)
	return APIKeyID(u), err
}

func NewTenantID() TenantID           { return TenantID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }
func NewGuardrailID() GuardrailID     { return GuardrailID(uuid.New()) }
func NewPolicyID() PolicyID           { return PolicyID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewAPIKeyID() APIKeyID           { return APIKeyID(uuid.New()) }
