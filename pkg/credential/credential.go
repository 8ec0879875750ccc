// Package credential issues and resolves the opaque tenant API credentials
// described in spec §4.C / §6. Only a SHA-256 digest of the full opaque
// string is ever persisted; the raw value is returned to the caller once,
// at issuance or rotation time, and never again.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// credentialPrefix identifies AutoSEO credentials at a glance in logs and
// support tickets without leaking any of the secret itself.
const credentialPrefix = "aseo_"

// Credential is a resolved, persisted credential row (never carries the raw
// secret — only its digest).
type Credential struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Digest    string
	Revoked   bool
	CreatedAt time.Time
}

// Issued is returned exactly once, at issuance or rotation, and carries the
// raw opaque string the caller must store client-side.
type Issued struct {
	Credential
	Raw string
}

// Store persists credential digests. Implementations must never store the
// raw opaque string.
type Store interface {
	Insert(ctx context.Context, tenantID uuid.UUID, digest string) (Credential, error)
	FindByDigest(ctx context.Context, digest string) (Credential, error)
	RevokeAllForTenant(ctx context.Context, tenantID uuid.UUID) error
}

// Service issues and resolves credentials on behalf of the API facade and
// the authentication middleware.
type Service struct {
	store Store
}

// NewService builds a credential Service backed by the given Store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Issue mints a new credential for tenantID. Any credential previously
// issued to the tenant keeps working unless Rotate is called — issuance at
// signup time does not revoke anything.
func (s *Service) Issue(ctx context.Context, tenantID uuid.UUID) (Issued, error) {
	raw, digest := generate()

	row, err := s.store.Insert(ctx, tenantID, digest)
	if err != nil {
		return Issued{}, fmt.Errorf("issuing credential: %w", err)
	}

	return Issued{Credential: row, Raw: raw}, nil
}

// Rotate revokes every existing credential for tenantID and issues a fresh
// one, per spec §4.C: "rotation invalidates all previously issued
// credentials for that tenant."
func (s *Service) Rotate(ctx context.Context, tenantID uuid.UUID) (Issued, error) {
	if err := s.store.RevokeAllForTenant(ctx, tenantID); err != nil {
		return Issued{}, fmt.Errorf("revoking credentials: %w", err)
	}
	return s.Issue(ctx, tenantID)
}

// Resolve looks up the tenant owning the given raw opaque credential. It
// returns ErrNotFound-shaped errors from the Store verbatim; callers treat
// any error as an authentication failure.
func (s *Service) Resolve(ctx context.Context, raw string) (Credential, error) {
	digest := digestOf(raw)
	row, err := s.store.FindByDigest(ctx, digest)
	if err != nil {
		return Credential{}, err
	}
	if row.Revoked {
		return Credential{}, fmt.Errorf("credential revoked")
	}
	return row, nil
}

// generate produces a new raw opaque credential and its digest. The raw
// value is 32 bytes of crypto/rand hex-encoded and prefixed so it is
// recognizable in transit without revealing structure.
func generate() (raw, digest string) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	raw = credentialPrefix + hex.EncodeToString(b)
	return raw, digestOf(raw)
}

// digestOf hashes the full raw string, per spec §6: "Storage holds only a
// 256-bit digest of the full string" — unlike a prefix-only scheme, the
// digest alone is enough to authenticate a presented credential.
func digestOf(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
