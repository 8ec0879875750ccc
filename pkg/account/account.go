// Package account implements the tenant-facing read views of spec §6:
// current-cycle usage, historical billing cycles, and an aggregate
// dashboard combining billing state with site/audit activity.
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/plan"
	"github.com/shakhawat2680/autoseo/pkg/site"
)

// Usage is the response body of GET /usage (spec §6).
type Usage struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	PlanID     string    `json:"plan_id"`
	UsageCount int       `json:"usage_count"`
	Allowance  int       `json:"allowance"`
	Remaining  int       `json:"remaining"`
	CycleStart string    `json:"cycle_start"`
	CycleEnd   string    `json:"cycle_end"`
	Status     string    `json:"status"`
}

// HistoryEntry is one past billing cycle, with the overage charge computed
// from the plan's overage rate when the cycle hasn't been invoiced yet.
type HistoryEntry struct {
	billing.BillingRecord
	OverageCharge float64 `json:"overage_charge"`
}

// Dashboard is the response body of GET /dashboard (spec §6): an aggregate
// summary of a tenant's current usage and site portfolio.
type Dashboard struct {
	Usage         Usage   `json:"usage"`
	SiteCount     int     `json:"site_count"`
	SitesFailing  int     `json:"sites_failing"`
	AverageScore  float64 `json:"average_score"`
	TotalAudits   int     `json:"total_audits"`
}

// SiteLister is the subset of site.Store the dashboard view needs.
type SiteLister interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]site.Site, error)
}

// Service reads across billing and site state without mutating either; it
// exists only to shape the aggregate views the account routes return.
type Service struct {
	billingStore billing.Store
	plans        *plan.Catalog
	sites        SiteLister
	logger       *slog.Logger
}

// NewService builds an account Service.
func NewService(billingStore billing.Store, plans *plan.Catalog, sites SiteLister, logger *slog.Logger) *Service {
	return &Service{billingStore: billingStore, plans: plans, sites: sites, logger: logger}
}

// Usage returns tenantID's current-cycle usage snapshot (spec §6 GET /usage).
func (s *Service) Usage(ctx context.Context, tenantID uuid.UUID) (Usage, error) {
	t, err := s.billingStore.GetTenant(ctx, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("fetching tenant: %w", err)
	}
	return usageFromTenant(t), nil
}

func usageFromTenant(t billing.Tenant) Usage {
	remaining := t.Allowance - t.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		TenantID:   t.ID,
		PlanID:     t.PlanID,
		UsageCount: t.UsageCount,
		Allowance:  t.Allowance,
		Remaining:  remaining,
		CycleStart: t.CycleStart.UTC().Format("2006-01-02T15:04:05Z07:00"),
		CycleEnd:   t.CycleEnd.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Status:     string(t.Status),
	}
}

// BillingHistory returns tenantID's archived billing cycles, most recent
// first (spec §4.D.5, §6 GET /billing/history).
func (s *Service) BillingHistory(ctx context.Context, tenantID uuid.UUID) ([]HistoryEntry, error) {
	t, err := s.billingStore.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fetching tenant: %w", err)
	}

	records, err := s.billingStore.ListBillingHistory(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing billing history: %w", err)
	}

	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entry := HistoryEntry{BillingRecord: rec}
		if rec.Amount == nil {
			_, entry.OverageCharge = s.overageFor(rec.OverageCount, t.PlanID)
		} else {
			entry.OverageCharge = *rec.Amount
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Service) overageFor(overage int, planID string) (blocks int, charge float64) {
	if overage <= 0 {
		return 0, 0
	}
	rate := s.plans.OverageRate(planID)
	blocks = (overage + 99) / 100
	return blocks, float64(blocks) * rate
}

// Dashboard returns an aggregate summary of tenantID's usage and sites
// (spec §6 GET /dashboard).
func (s *Service) Dashboard(ctx context.Context, tenantID uuid.UUID) (Dashboard, error) {
	t, err := s.billingStore.GetTenant(ctx, tenantID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("fetching tenant: %w", err)
	}

	sites, err := s.sites.ListByTenant(ctx, tenantID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("listing sites: %w", err)
	}

	dash := Dashboard{Usage: usageFromTenant(t), SiteCount: len(sites)}

	var scoreSum, scoredSites int
	for _, st := range sites {
		dash.TotalAudits += st.AuditCount
		if st.Status == site.StatusFailed {
			dash.SitesFailing++
		}
		if st.LastScore != nil {
			scoreSum += *st.LastScore
			scoredSites++
		}
	}
	if scoredSites > 0 {
		dash.AverageScore = float64(scoreSum) / float64(scoredSites)
	}

	return dash, nil
}
