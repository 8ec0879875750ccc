// Package auth resolves the caller identity for each request: tenant
// routes via X-API-Key, admin routes via a shared secret (spec §4.H, §6).
package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
)

// Identity is the authenticated tenant attached to the request context
// after the gate passes.
type Identity struct {
	TenantID uuid.UUID
	Tenant   billing.Tenant
}

type ctxKey string

const identityKey ctxKey = "identity"

// NewContext stores id in ctx.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the Identity stored by the gate middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
