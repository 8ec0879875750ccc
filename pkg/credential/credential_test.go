package credential

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	byDigest map[string]Credential
}

func newFakeStore() *fakeStore {
	return &fakeStore{byDigest: map[string]Credential{}}
}

func (f *fakeStore) Insert(_ context.Context, tenantID uuid.UUID, digest string) (Credential, error) {
	c := Credential{ID: uuid.New(), TenantID: tenantID, Digest: digest, CreatedAt: time.Now()}
	f.byDigest[digest] = c
	return c, nil
}

func (f *fakeStore) FindByDigest(_ context.Context, digest string) (Credential, error) {
	c, ok := f.byDigest[digest]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) RevokeAllForTenant(_ context.Context, tenantID uuid.UUID) error {
	for k, c := range f.byDigest {
		if c.TenantID == tenantID {
			c.Revoked = true
			f.byDigest[k] = c
		}
	}
	return nil
}

func TestIssueHasPrefixAndResolves(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	tenantID := uuid.New()

	issued, err := svc.Issue(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !strings.HasPrefix(issued.Raw, credentialPrefix) {
		t.Errorf("Raw = %q, want prefix %q", issued.Raw, credentialPrefix)
	}

	resolved, err := svc.Resolve(context.Background(), issued.Raw)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.TenantID != tenantID {
		t.Errorf("TenantID = %v, want %v", resolved.TenantID, tenantID)
	}
}

func TestResolveUnknownFails(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	if _, err := svc.Resolve(context.Background(), "aseo_doesnotexist"); err == nil {
		t.Error("Resolve() on unknown credential should fail")
	}
}

func TestRotateInvalidatesPrior(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	tenantID := uuid.New()

	first, err := svc.Issue(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	second, err := svc.Rotate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if second.Raw == first.Raw {
		t.Fatal("Rotate() returned the same raw credential")
	}

	if _, err := svc.Resolve(context.Background(), first.Raw); err == nil {
		t.Error("Resolve() on a rotated-out credential should fail")
	}

	resolved, err := svc.Resolve(context.Background(), second.Raw)
	if err != nil {
		t.Fatalf("Resolve() on fresh credential error = %v", err)
	}
	if resolved.TenantID != tenantID {
		t.Errorf("TenantID = %v, want %v", resolved.TenantID, tenantID)
	}
}

func TestTwoIssuancesProduceDifferentRaws(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	tenantID := uuid.New()

	a, err := svc.Issue(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	b, err := svc.Issue(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if a.Raw == b.Raw {
		t.Error("two issuances produced the same raw credential")
	}
}
