package admin

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/credential"
	"github.com/shakhawat2680/autoseo/pkg/notifier"
	"github.com/shakhawat2680/autoseo/pkg/plan"
)

type fakeStore struct {
	tenants map[uuid.UUID]billing.Tenant
	records []billing.BillingRecord
}

func (f *fakeStore) GetTenant(ctx context.Context, id uuid.UUID) (billing.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return billing.Tenant{}, billing.ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd, lastReset time.Time, usageCount int) error {
	t := f.tenants[tenantID]
	t.CycleStart, t.CycleEnd, t.LastReset, t.UsageCount = cycleStart, cycleEnd, lastReset, usageCount
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeStore) UpdatePlan(ctx context.Context, tenantID uuid.UUID, planID string, allowance int, cycleKind *billing.CycleKind, cycleStart, cycleEnd *time.Time) error {
	t := f.tenants[tenantID]
	t.PlanID, t.Allowance = planID, allowance
	if cycleStart != nil {
		t.CycleStart = *cycleStart
	}
	if cycleEnd != nil {
		t.CycleEnd = *cycleEnd
	}
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeStore) InsertUsageEvent(ctx context.Context, tenantID uuid.UUID, action billing.UsageAction, resourceID *uuid.UUID, at time.Time) error {
	t := f.tenants[tenantID]
	t.UsageCount++
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeStore) SumUsageInCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd time.Time) (int, error) {
	return f.tenants[tenantID].UsageCount, nil
}

func (f *fakeStore) InsertBillingRecord(ctx context.Context, rec billing.BillingRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) DeleteUsageEventsBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) error {
	return nil
}

func (f *fakeStore) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	var out []billing.Tenant
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ListBillingHistory(ctx context.Context, tenantID uuid.UUID) ([]billing.BillingRecord, error) {
	return nil, nil
}

func (f *fakeStore) RevenueByPlan(ctx context.Context, start, end time.Time) (map[string]float64, int, error) {
	byPlan := map[string]float64{}
	overage := 0
	for _, rec := range f.records {
		if rec.PaymentDate == nil || rec.PaymentDate.Before(start) || !rec.PaymentDate.Before(end) {
			continue
		}
		t := f.tenants[rec.TenantID]
		if rec.Amount != nil {
			byPlan[t.PlanID] += *rec.Amount
		}
		overage += rec.OverageCount
	}
	return byPlan, overage, nil
}

type fakeLock struct{}

func (fakeLock) WithLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

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

type capturingNotifier struct {
	sent []billing.Alert
}

func (c *capturingNotifier) Notify(ctx context.Context, tenantID string, alert billing.Alert) error {
	c.sent = append(c.sent, alert)
	return nil
}

func newTestService(store *fakeStore) *Service {
	return newTestServiceWithNotifier(store, notifier.NopNotifier{})
}

func newTestServiceWithNotifier(store *fakeStore, notify notifier.Notifier) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := plan.NewCatalog()
	engine := billing.NewEngine(store, credential.NewService(fakeCredentialStore{}), catalog, fakeLock{}, logger)
	return NewService(store, engine, catalog, notify, logger)
}

func TestForceResetAllRollsExpiredTenantsOnly(t *testing.T) {
	expired := uuid.New()
	current := uuid.New()
	store := &fakeStore{tenants: map[uuid.UUID]billing.Tenant{
		expired: {
			ID: expired, PlanID: "free", CycleKind: billing.CycleMonthly,
			Allowance: 100, UsageCount: 5, Status: billing.StatusActive,
			CycleStart: time.Now().Add(-60 * 24 * time.Hour), CycleEnd: time.Now().Add(-time.Hour),
		},
		current: {
			ID: current, PlanID: "free", CycleKind: billing.CycleMonthly,
			Allowance: 100, UsageCount: 5, Status: billing.StatusActive,
			CycleStart: time.Now(), CycleEnd: time.Now().Add(30 * 24 * time.Hour),
		},
	}}

	svc := newTestService(store)
	result, err := svc.ForceResetAll(context.Background())
	if err != nil {
		t.Fatalf("force reset all: %v", err)
	}
	if result.TenantsChecked != 2 {
		t.Errorf("expected 2 tenants checked, got %d", result.TenantsChecked)
	}
	if result.TenantsRolled != 1 {
		t.Errorf("expected 1 tenant rolled, got %d", result.TenantsRolled)
	}
	if len(store.records) != 1 {
		t.Errorf("expected 1 billing record archived, got %d", len(store.records))
	}
}

func TestForceResetAllIdempotentOnReinvocation(t *testing.T) {
	expired := uuid.New()
	store := &fakeStore{tenants: map[uuid.UUID]billing.Tenant{
		expired: {
			ID: expired, PlanID: "free", CycleKind: billing.CycleMonthly,
			Allowance: 100, UsageCount: 5, Status: billing.StatusActive,
			CycleStart: time.Now().Add(-60 * 24 * time.Hour), CycleEnd: time.Now().Add(-time.Hour),
		},
	}}

	svc := newTestService(store)
	if _, err := svc.ForceResetAll(context.Background()); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	result, err := svc.ForceResetAll(context.Background())
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if result.TenantsRolled != 0 {
		t.Errorf("expected no tenants rolled on re-invocation, got %d", result.TenantsRolled)
	}
	if len(store.records) != 1 {
		t.Errorf("expected exactly one billing record total, got %d", len(store.records))
	}
}

func TestRetargetAllowancesUpdatesOnlyDrifted(t *testing.T) {
	onPlan := uuid.New()
	store := &fakeStore{tenants: map[uuid.UUID]billing.Tenant{
		onPlan: {ID: onPlan, PlanID: "free", Allowance: 50},
	}}

	svc := newTestService(store)
	result, err := svc.RetargetAllowances(context.Background())
	if err != nil {
		t.Fatalf("retarget allowances: %v", err)
	}
	if result.TenantsUpdated != 1 {
		t.Errorf("expected 1 tenant updated, got %d", result.TenantsUpdated)
	}
	if store.tenants[onPlan].Allowance != 100 {
		t.Errorf("expected allowance retargeted to free plan's 100, got %d", store.tenants[onPlan].Allowance)
	}
}

func TestChangePlanRejectsUnknownPlan(t *testing.T) {
	store := &fakeStore{tenants: map[uuid.UUID]billing.Tenant{}}
	svc := newTestService(store)

	err := svc.ChangePlan(context.Background(), uuid.New(), "nonexistent", nil)
	if err != ErrUnknownPlan {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestRunAlertSweepForwardsThresholdHitsToNotifier(t *testing.T) {
	over := uuid.New()
	under := uuid.New()
	store := &fakeStore{tenants: map[uuid.UUID]billing.Tenant{
		over: {
			ID: over, PlanID: "free", Allowance: 100, UsageCount: 95,
			CycleStart: time.Now(), CycleEnd: time.Now().Add(30 * 24 * time.Hour),
		},
		under: {
			ID: under, PlanID: "free", Allowance: 100, UsageCount: 10,
			CycleStart: time.Now(), CycleEnd: time.Now().Add(30 * 24 * time.Hour),
		},
	}}

	notify := &capturingNotifier{}
	svc := newTestServiceWithNotifier(store, notify)

	result, err := svc.RunAlertSweep(context.Background())
	if err != nil {
		t.Fatalf("run alert sweep: %v", err)
	}
	if result.TenantsChecked != 2 {
		t.Errorf("expected 2 tenants checked, got %d", result.TenantsChecked)
	}
	if result.AlertsSent != 1 {
		t.Errorf("expected 1 alert sent, got %d", result.AlertsSent)
	}
	if len(notify.sent) != 1 || notify.sent[0].Kind != billing.AlertUsage90 {
		t.Errorf("expected a single usage_90 alert, got %+v", notify.sent)
	}
}

func TestRevenueAggregatesByPlanWithinRange(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	inRange := now.Add(-time.Hour)
	amount := 15.0
	store := &fakeStore{
		tenants: map[uuid.UUID]billing.Tenant{tenantID: {ID: tenantID, PlanID: "pro"}},
		records: []billing.BillingRecord{
			{TenantID: tenantID, Amount: &amount, OverageCount: 3, PaymentDate: &inRange},
		},
	}

	svc := newTestService(store)
	rev, err := svc.Revenue(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if rev.ByPlan["pro"] != 15 {
		t.Errorf("expected pro plan revenue 15, got %v", rev.ByPlan["pro"])
	}
	if rev.TotalOverage != 3 {
		t.Errorf("expected total overage 3, got %d", rev.TotalOverage)
	}
}
