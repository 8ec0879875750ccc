package audit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/credential"
	"github.com/shakhawat2680/autoseo/pkg/plan"
)

type fakeSites struct {
	statuses map[uuid.UUID]SiteStatus
	complete map[uuid.UUID]int
}

func newFakeSites() *fakeSites {
	return &fakeSites{statuses: map[uuid.UUID]SiteStatus{}, complete: map[uuid.UUID]int{}}
}

func (f *fakeSites) UpdateStatus(ctx context.Context, siteID uuid.UUID, status SiteStatus) error {
	f.statuses[siteID] = status
	return nil
}

func (f *fakeSites) CompleteAudit(ctx context.Context, siteID, auditID uuid.UUID, score int) error {
	f.statuses[siteID] = SiteStatusCompleted
	f.complete[siteID] = score
	return nil
}

type fakeBillingStore struct {
	tenants map[uuid.UUID]billing.Tenant
	events  []billing.UsageEvent
}

func (f *fakeBillingStore) GetTenant(ctx context.Context, id uuid.UUID) (billing.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return billing.Tenant{}, billing.ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeBillingStore) UpdateCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd, lastReset time.Time, usageCount int) error {
	t := f.tenants[tenantID]
	t.CycleStart, t.CycleEnd, t.LastReset, t.UsageCount = cycleStart, cycleEnd, lastReset, usageCount
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeBillingStore) UpdatePlan(ctx context.Context, tenantID uuid.UUID, planID string, allowance int, cycleKind *billing.CycleKind, cycleStart, cycleEnd *time.Time) error {
	return nil
}

func (f *fakeBillingStore) InsertUsageEvent(ctx context.Context, tenantID uuid.UUID, action billing.UsageAction, resourceID *uuid.UUID, at time.Time) error {
	f.events = append(f.events, billing.UsageEvent{TenantID: tenantID, Action: action})
	t := f.tenants[tenantID]
	t.UsageCount++
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeBillingStore) SumUsageInCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd time.Time) (int, error) {
	return f.tenants[tenantID].UsageCount, nil
}

func (f *fakeBillingStore) InsertBillingRecord(ctx context.Context, rec billing.BillingRecord) error {
	return nil
}

func (f *fakeBillingStore) DeleteUsageEventsBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) error {
	return nil
}

func (f *fakeBillingStore) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	var out []billing.Tenant
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBillingStore) ListBillingHistory(ctx context.Context, tenantID uuid.UUID) ([]billing.BillingRecord, error) {
	return nil, nil
}

func (f *fakeBillingStore) RevenueByPlan(ctx context.Context, start, end time.Time) (map[string]float64, int, error) {
	return nil, 0, nil
}

type fakeLock struct{}

func (fakeLock) WithLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePlans struct{}

func (fakePlans) Allowance(id string) int       { return 100 }
func (fakePlans) OverageRate(id string) float64 { return 5 }

type fakeCredentialStore struct{}

func (fakeCredentialStore) Insert(ctx context.Context, tenantID uuid.UUID, digest string) (credential.Credential, error) {
	return credential.Credential{TenantID: tenantID, Digest: digest}, nil
}
func (fakeCredentialStore) FindByDigest(ctx context.Context, digest string) (credential.Credential, error) {
	return credential.Credential{}, credential.ErrNotFound
}
func (fakeCredentialStore) RevokeAllForTenant(ctx context.Context, tenantID uuid.UUID) error {
	return nil
}

func newTestOrchestrator(t *testing.T, sites *fakeSites, audits Store, tenantID uuid.UUID) *Orchestrator {
	t.Helper()
	store := &fakeBillingStore{tenants: map[uuid.UUID]billing.Tenant{
		tenantID: {
			ID: tenantID, PlanID: "free", CycleKind: billing.CycleMonthly,
			Allowance: 100, UsageCount: 0, Status: billing.StatusActive,
			CycleStart: time.Now().Add(-time.Hour), CycleEnd: time.Now().Add(time.Hour),
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := credential.NewService(fakeCredentialStore{})
	engine := billing.NewEngine(store, creds, fakePlans{}, fakeLock{}, logger)
	return NewOrchestrator(sites, audits, engine, plan.NewCatalog(), logger)
}

func TestOrchestratorScenarioS4(t *testing.T) {
	// Empty title draws both of its penalties (-20 missing, -10 short); the
	// meta description is present and long enough to draw none; thin
	// content (-15) brings the total to 100-20-10-15=55 (spec §8 S4).
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title></title><meta name="description" content="A meta description that comfortably exceeds seventy characters in total length for scoring"></head><body>` +
			paddedWords(120) + `</body></html>`))
	}))
	defer srv.Close()

	sites := newFakeSites()
	auditStore := &fakeStore{}
	tenantID := uuid.New()
	siteID := uuid.New()

	o := newTestOrchestrator(t, sites, auditStore, tenantID)
	o.Run(context.Background(), siteID, tenantID, srv.URL)

	if sites.statuses[siteID] != SiteStatusCompleted {
		t.Fatalf("expected site completed, got %s", sites.statuses[siteID])
	}
	if len(auditStore.rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(auditStore.rows))
	}
	if auditStore.rows[0].Score != 55 {
		t.Errorf("expected score 55, got %d", auditStore.rows[0].Score)
	}
}

func TestOrchestratorScenarioS5FetchFailureMarksFailed(t *testing.T) {
	sites := newFakeSites()
	auditStore := &fakeStore{}
	tenantID := uuid.New()
	siteID := uuid.New()

	o := newTestOrchestrator(t, sites, auditStore, tenantID)
	o.Run(context.Background(), siteID, tenantID, "http://127.0.0.1:1")

	if sites.statuses[siteID] != SiteStatusFailed {
		t.Fatalf("expected site failed, got %s", sites.statuses[siteID])
	}
	if len(auditStore.rows) != 0 {
		t.Errorf("expected no audit row on failure, got %d", len(auditStore.rows))
	}
}

func TestOrchestratorDeniedGateMarksFailedWithoutCrawl(t *testing.T) {
	sites := newFakeSites()
	auditStore := &fakeStore{}
	tenantID := uuid.New()
	siteID := uuid.New()

	o := newTestOrchestrator(t, sites, auditStore, tenantID)
	o.billing.RecordUsage(context.Background(), tenantID, billing.ActionAPICall, nil)
	for i := 0; i < 100; i++ {
		o.billing.RecordUsage(context.Background(), tenantID, billing.ActionAPICall, nil)
	}

	o.Run(context.Background(), siteID, tenantID, "http://example.invalid")

	if sites.statuses[siteID] != SiteStatusFailed {
		t.Fatalf("expected site failed when quota exhausted, got %s", sites.statuses[siteID])
	}
}

func paddedWords(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += "word "
	}
	return out
}
