package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/plan"
	"github.com/shakhawat2680/autoseo/pkg/site"
)

type fakeBillingStore struct {
	tenant  billing.Tenant
	records []billing.BillingRecord
}

func (f *fakeBillingStore) GetTenant(ctx context.Context, id uuid.UUID) (billing.Tenant, error) {
	return f.tenant, nil
}
func (f *fakeBillingStore) UpdateCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd, lastReset time.Time, usageCount int) error {
	return nil
}
func (f *fakeBillingStore) UpdatePlan(ctx context.Context, tenantID uuid.UUID, planID string, allowance int, cycleKind *billing.CycleKind, cycleStart, cycleEnd *time.Time) error {
	return nil
}
func (f *fakeBillingStore) InsertUsageEvent(ctx context.Context, tenantID uuid.UUID, action billing.UsageAction, resourceID *uuid.UUID, at time.Time) error {
	return nil
}
func (f *fakeBillingStore) SumUsageInCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd time.Time) (int, error) {
	return 0, nil
}
func (f *fakeBillingStore) InsertBillingRecord(ctx context.Context, rec billing.BillingRecord) error {
	return nil
}
func (f *fakeBillingStore) DeleteUsageEventsBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) error {
	return nil
}
func (f *fakeBillingStore) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	return []billing.Tenant{f.tenant}, nil
}
func (f *fakeBillingStore) ListBillingHistory(ctx context.Context, tenantID uuid.UUID) ([]billing.BillingRecord, error) {
	return f.records, nil
}
func (f *fakeBillingStore) RevenueByPlan(ctx context.Context, start, end time.Time) (map[string]float64, int, error) {
	return nil, 0, nil
}

type fakeSiteLister struct {
	sites []site.Site
}

func (f *fakeSiteLister) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]site.Site, error) {
	return f.sites, nil
}

func newTestService(store *fakeBillingStore, sites *fakeSiteLister) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, plan.NewCatalog(), sites, logger)
}

func TestUsageReportsRemainingAllowance(t *testing.T) {
	tenantID := uuid.New()
	store := &fakeBillingStore{tenant: billing.Tenant{
		ID: tenantID, PlanID: "pro", UsageCount: 400, Allowance: 1000,
		Status: billing.StatusActive, CycleStart: time.Now(), CycleEnd: time.Now().Add(30 * 24 * time.Hour),
	}}
	svc := newTestService(store, &fakeSiteLister{})

	usage, err := svc.Usage(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Remaining != 600 {
		t.Errorf("expected remaining 600, got %d", usage.Remaining)
	}
}

func TestBillingHistoryComputesOverageChargeWhenUninvoiced(t *testing.T) {
	tenantID := uuid.New()
	store := &fakeBillingStore{
		tenant: billing.Tenant{ID: tenantID, PlanID: "pro"},
		records: []billing.BillingRecord{
			{TenantID: tenantID, OverageCount: 250}, // no Amount set: 3 blocks * $5 = $15
		},
	}
	svc := newTestService(store, &fakeSiteLister{})

	history, err := svc.BillingHistory(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("billing history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].OverageCharge != 15 {
		t.Errorf("expected overage charge 15, got %v", history[0].OverageCharge)
	}
}

func TestBillingHistoryUsesInvoicedAmountWhenSet(t *testing.T) {
	tenantID := uuid.New()
	amount := 42.5
	store := &fakeBillingStore{
		tenant:  billing.Tenant{ID: tenantID, PlanID: "pro"},
		records: []billing.BillingRecord{{TenantID: tenantID, OverageCount: 300, Amount: &amount}},
	}
	svc := newTestService(store, &fakeSiteLister{})

	history, err := svc.BillingHistory(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("billing history: %v", err)
	}
	if history[0].OverageCharge != 42.5 {
		t.Errorf("expected invoiced amount 42.5, got %v", history[0].OverageCharge)
	}
}

func TestDashboardAggregatesSiteActivity(t *testing.T) {
	tenantID := uuid.New()
	store := &fakeBillingStore{tenant: billing.Tenant{
		ID: tenantID, PlanID: "free", UsageCount: 10, Allowance: 100, Status: billing.StatusActive,
	}}
	scoreA, scoreB := 80, 60
	sites := &fakeSiteLister{sites: []site.Site{
		{ID: uuid.New(), TenantID: tenantID, Status: site.StatusCompleted, LastScore: &scoreA, AuditCount: 3},
		{ID: uuid.New(), TenantID: tenantID, Status: site.StatusCompleted, LastScore: &scoreB, AuditCount: 1},
		{ID: uuid.New(), TenantID: tenantID, Status: site.StatusFailed, AuditCount: 0},
	}}
	svc := newTestService(store, sites)

	dash, err := svc.Dashboard(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.SiteCount != 3 {
		t.Errorf("expected site count 3, got %d", dash.SiteCount)
	}
	if dash.SitesFailing != 1 {
		t.Errorf("expected 1 failing site, got %d", dash.SitesFailing)
	}
	if dash.AverageScore != 70 {
		t.Errorf("expected average score 70, got %v", dash.AverageScore)
	}
	if dash.TotalAudits != 4 {
		t.Errorf("expected total audits 4, got %d", dash.TotalAudits)
	}
}
