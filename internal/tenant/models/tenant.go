package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// Tenant is the aggregate root for an isolated customer organization.
//
// Invariants:
//   - ID is externally issued and immutable
//   - Slug is unique platform-wide, chosen at creation with collision retry
//   - Every other core entity carries this tenant's id and every read/write
//     path filters by it; a cross-tenant read is a correctness bug, not an
//     authorization gap
type Tenant struct {
	ID           domain.TenantID `json:"id"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Plan         string          `json:"plan"`
	FeatureFlags map[string]bool `json:"feature_flags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewTenant(id domain.TenantID, name, slug, plan string, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant slug cannot be empty")
	}
	if plan == "" {
		plan = "free"
	}
	return &Tenant{
		ID:        id,
		Slug:      slug,
		Name:      name,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the base slug for a tenant name: lowercase, alphanumeric
// runs joined by single hyphens.
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// SlugCandidate is the pure attempt→candidate function for collision retry.
// Attempt 0 is the base slug itself; attempt k appends "-k". Keeping this a
// pure function makes the retry sequence independently testable.
func SlugCandidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt)
}
