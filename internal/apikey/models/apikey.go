package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"aegis/pkg/domain"
)

const prefixLen = 12

// APIKey is the stored form of an issued key: the SHA-256 digest plus a
// short prefix for display. The plaintext exists only in the issue response
// and is never reconstructable from this record.
type APIKey struct {
	ID        domain.APIKeyID `json:"id"`
	TenantID  domain.TenantID `json:"tenant_id"`
	Name      string          `json:"name"`
	Prefix    string          `json:"prefix"`
	Hash      string          `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	RevokedAt *time.Time      `json:"revoked_at,omitempty"`
}

func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Generate mints a plaintext secret of the form sk_<env>_<random> and the
// stored record for it.
func Generate(tenantID domain.TenantID, name, env string, now time.Time) (*APIKey, string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate key material: %w", err)
	}
	plaintext := fmt.Sprintf("sk_%s_%s", env, hex.EncodeToString(raw))

	key := &APIKey{
		ID:        domain.NewAPIKeyID(),
		TenantID:  tenantID,
		Name:      name,
		Prefix:    plaintext[:prefixLen],
		Hash:      HashSecret(plaintext),
		CreatedAt: now,
	}
	return key, plaintext, nil
}

// HashSecret is the canonical plaintext-to-digest mapping. Verification
// recomputes it; the plaintext is never stored.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Matches compares in constant time.
func (k *APIKey) Matches(plaintext string) bool {
	return subtle.ConstantTimeCompare([]byte(k.Hash), []byte(HashSecret(plaintext))) == 1
}
