// Package admin implements the maintenance operations of spec §4.I: forced
// cycle rollover, allowance retargeting, and revenue aggregation, grounded
// on the teacher's "list every tenant, log and continue on a per-tenant
// error" sweep shape (pkg/escalation/engine.go's tick/processTenant).
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/notifier"
	"github.com/shakhawat2680/autoseo/pkg/plan"
)

// Service implements the admin operations against the billing engine and
// plan catalog.
type Service struct {
	store   billing.Store
	billing *billing.Engine
	plans   *plan.Catalog
	notify  notifier.Notifier
	logger  *slog.Logger
}

// NewService builds an admin Service.
func NewService(store billing.Store, billingEngine *billing.Engine, plans *plan.Catalog, notify notifier.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, billing: billingEngine, plans: plans, notify: notify, logger: logger}
}

// ResetResult reports how many tenants a sweep touched.
type ResetResult struct {
	TenantsChecked int `json:"tenants_checked"`
	TenantsRolled  int `json:"tenants_rolled"`
}

// ForceResetAll invokes RollIfExpired on every tenant (spec §4.I). Like the
// teacher's escalation tick, a single tenant's failure is logged and does
// not stop the sweep.
func (s *Service) ForceResetAll(ctx context.Context) (ResetResult, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return ResetResult{}, fmt.Errorf("listing tenants: %w", err)
	}

	result := ResetResult{TenantsChecked: len(tenants)}
	for _, t := range tenants {
		before := t.CycleEnd
		if err := s.billing.RollIfExpired(ctx, t.ID); err != nil {
			s.logger.Error("force reset failed for tenant", "tenant_id", t.ID, "error", err)
			continue
		}
		after, err := s.store.GetTenant(ctx, t.ID)
		if err != nil {
			s.logger.Error("re-reading tenant after reset", "tenant_id", t.ID, "error", err)
			continue
		}
		if after.CycleEnd.After(before) {
			result.TenantsRolled++
		}
	}
	return result, nil
}

// RetargetResult reports how many tenants had their allowance updated.
type RetargetResult struct {
	TenantsUpdated int `json:"tenants_updated"`
}

// RetargetAllowances re-applies the current plan catalog's allowances to
// every tenant, used after a catalog change (spec §4.I).
func (s *Service) RetargetAllowances(ctx context.Context) (RetargetResult, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return RetargetResult{}, fmt.Errorf("listing tenants: %w", err)
	}

	result := RetargetResult{}
	for _, t := range tenants {
		allowance := s.plans.Allowance(t.PlanID)
		if allowance == t.Allowance {
			continue
		}
		if err := s.store.UpdatePlan(ctx, t.ID, t.PlanID, allowance, nil, nil, nil); err != nil {
			s.logger.Error("retargeting allowance failed for tenant", "tenant_id", t.ID, "error", err)
			continue
		}
		result.TenantsUpdated++
	}
	return result, nil
}

// Revenue is the aggregate produced by Revenue() (spec §4.I).
type Revenue struct {
	ByPlan       map[string]float64 `json:"by_plan"`
	TotalOverage int                `json:"total_overage"`
}

// Revenue aggregates billing records with payment_date in [start, end),
// grouped by plan, plus total overage count (spec §4.I).
func (s *Service) Revenue(ctx context.Context, start, end time.Time) (Revenue, error) {
	byPlan, totalOverage, err := s.store.RevenueByPlan(ctx, start, end)
	if err != nil {
		return Revenue{}, fmt.Errorf("aggregating revenue: %w", err)
	}
	return Revenue{ByPlan: byPlan, TotalOverage: totalOverage}, nil
}

// ChangePlan is the admin-facing wrapper around billing.Engine.ChangePlan
// (spec §6 POST /tenants/{id}/plan).
func (s *Service) ChangePlan(ctx context.Context, tenantID uuid.UUID, newPlanID string, cycleKind *billing.CycleKind) error {
	if !s.plans.Exists(newPlanID) {
		return ErrUnknownPlan
	}
	return s.billing.ChangePlan(ctx, tenantID, newPlanID, cycleKind)
}

// ErrUnknownPlan is returned when an admin requests a plan id the catalog
// doesn't recognize (spec §7 invalid_plan).
var ErrUnknownPlan = fmt.Errorf("unknown plan id")

// AlertSweepResult reports how many tenants were checked and how many
// threshold alerts were forwarded to the notifier.
type AlertSweepResult struct {
	TenantsChecked int `json:"tenants_checked"`
	AlertsSent     int `json:"alerts_sent"`
}

// RunAlertSweep evaluates billing.Engine.Alerts for every tenant and
// forwards any hits to the configured notifier (spec §4.D.7). Like
// ForceResetAll, a single tenant's notify failure is logged and does not
// stop the sweep.
func (s *Service) RunAlertSweep(ctx context.Context) (AlertSweepResult, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return AlertSweepResult{}, fmt.Errorf("listing tenants: %w", err)
	}

	result := AlertSweepResult{TenantsChecked: len(tenants)}
	for _, t := range tenants {
		for _, alert := range s.billing.Alerts(t) {
			if err := s.notify.Notify(ctx, t.ID.String(), alert); err != nil {
				s.logger.Error("sending billing alert failed", "tenant_id", t.ID, "kind", alert.Kind, "error", err)
				continue
			}
			result.AlertsSent++
		}
	}
	return result, nil
}

// RunAlertSweepLoop runs RunAlertSweep once immediately, then every
// interval, until ctx is cancelled. Grounded on the teacher's
// RunScheduleTopUpLoop ticker shape (pkg/roster/worker.go).
func (s *Service) RunAlertSweepLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info("billing alert sweep loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.RunAlertSweep(ctx); err != nil {
		s.logger.Error("initial billing alert sweep", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("billing alert sweep loop stopped")
			return
		case <-ticker.C:
			if _, err := s.RunAlertSweep(ctx); err != nil {
				s.logger.Error("billing alert sweep", "error", err)
			}
		}
	}
}
