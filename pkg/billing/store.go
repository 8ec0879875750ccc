package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the Engine depends on. The pgx-backed
// implementation lives in pkg/tenant (NewBillingStore), which owns the
// tenant-side table schemas; Engine only needs this narrow view (spec §9: "the live
// database connection is re-cast as an explicit persistence handle passed
// into each component constructor").
type Store interface {
	// GetTenant fetches the current tenant snapshot.
	GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error)

	// UpdateCycle atomically sets a tenant's cycle fields and usage counter.
	UpdateCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd, lastReset time.Time, usageCount int) error

	// UpdatePlan sets a tenant's plan id and allowance, optionally reinitializing
	// the cycle when cycleKind is non-nil and differs from the current one.
	UpdatePlan(ctx context.Context, tenantID uuid.UUID, planID string, allowance int, cycleKind *CycleKind, cycleStart, cycleEnd *time.Time) error

	// InsertUsageEvent appends a usage event and atomically increments the
	// tenant's denormalized usage counter (spec §4.D.3).
	InsertUsageEvent(ctx context.Context, tenantID uuid.UUID, action UsageAction, resourceID *uuid.UUID, at time.Time) error

	// SumUsageInCycle sums usage events for tenantID within [cycleStart, cycleEnd).
	SumUsageInCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd time.Time) (int, error)

	// InsertBillingRecord archives one closed cycle. Must be called before
	// the cycle fields are reset (spec §4.D.4, step order (c) before (d)).
	InsertBillingRecord(ctx context.Context, rec BillingRecord) error

	// DeleteUsageEventsBefore prunes usage events older than cutoff for tenantID.
	DeleteUsageEventsBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) error

	// ListTenants returns every tenant, for admin sweeps.
	ListTenants(ctx context.Context) ([]Tenant, error)

	// ListBillingHistory returns a tenant's archived billing records, newest first.
	ListBillingHistory(ctx context.Context, tenantID uuid.UUID) ([]BillingRecord, error)

	// RevenueByPlan aggregates billing records with PaymentDate in [start, end),
	// grouped by the tenant's plan id at aggregation time, plus total overage.
	RevenueByPlan(ctx context.Context, start, end time.Time) (map[string]float64, int, error)
}

// PlanLookup resolves a plan id to its allowance and overage rate, matching
// pkg/plan.Catalog's Resolve signature narrowed to what billing needs.
type PlanLookup interface {
	Allowance(planID string) int
	OverageRate(planID string) float64
}
