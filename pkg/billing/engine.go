package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/internal/telemetry"
	"github.com/shakhawat2680/autoseo/pkg/credential"
)

// credentialPrefix is the format the gate cheaply rejects malformed
// credentials against before ever touching the store (spec §4.D.2.i).
const credentialPrefix = "aseo_"

// Locker serializes rollover/usage-append per tenant (spec §5). TenantLock
// is the Redis-backed implementation; tests substitute an in-memory one.
type Locker interface {
	WithLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error
}

// Engine implements the quota/billing-cycle operations of spec §4.D. It
// holds no state of its own beyond its dependencies; every operation reads
// and writes through Store.
type Engine struct {
	store       Store
	credentials *credential.Service
	plans       PlanLookup
	lock        Locker
	logger      *slog.Logger
	clock       func() time.Time
}

// Option customizes Engine construction.
type Option func(*Engine)

// WithClock overrides the engine's time source, for deterministic tests of
// rollover and alerting.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine builds a billing Engine.
func NewEngine(store Store, credentials *credential.Service, plans PlanLookup, lock Locker, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		credentials: credentials,
		plans:       plans,
		lock:        lock,
		logger:      logger,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize writes a fresh billing cycle for a newly registered tenant
// (spec §4.D.1).
func (e *Engine) Initialize(ctx context.Context, tenantID uuid.UUID, cycleKind CycleKind) (time.Time, time.Time, error) {
	now := e.clock()
	cycleEnd := nextBoundary(now, cycleKind)

	if err := e.store.UpdateCycle(ctx, tenantID, now, cycleEnd, now, 0); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("initializing cycle: %w", err)
	}
	return now, cycleEnd, nil
}

// AuthenticateAndGate implements spec §4.D.2: resolve the credential, roll
// the cycle if expired, then evaluate subscription status and quota.
func (e *Engine) AuthenticateAndGate(ctx context.Context, opaque string) GateResult {
	if !strings.HasPrefix(opaque, credentialPrefix) {
		telemetry.GateDeniedTotal.WithLabelValues(string(DeniedInvalidCredential)).Inc()
		return GateResult{Allowed: false, Reason: DeniedInvalidCredential}
	}

	cred, err := e.credentials.Resolve(ctx, opaque)
	if err != nil {
		telemetry.GateDeniedTotal.WithLabelValues(string(DeniedInvalidCredential)).Inc()
		return GateResult{Allowed: false, Reason: DeniedInvalidCredential}
	}

	if err := e.RollIfExpired(ctx, cred.TenantID); err != nil {
		e.logger.Error("rollover during gate check", "tenant_id", cred.TenantID, "error", err)
	}

	tenant, err := e.store.GetTenant(ctx, cred.TenantID)
	if err != nil {
		telemetry.GateDeniedTotal.WithLabelValues(string(DeniedInvalidCredential)).Inc()
		return GateResult{Allowed: false, Reason: DeniedInvalidCredential}
	}

	if tenant.Status != StatusActive {
		telemetry.GateDeniedTotal.WithLabelValues(string(DeniedSubscriptionInactive)).Inc()
		status := string(tenant.Status)
		return GateResult{Allowed: false, Reason: DeniedSubscriptionInactive, Detail: Detail{Status: &status}}
	}

	if tenant.UsageCount >= tenant.Allowance {
		telemetry.GateDeniedTotal.WithLabelValues(string(DeniedRateLimitExceeded)).Inc()
		return GateResult{Allowed: false, Reason: DeniedRateLimitExceeded, Detail: e.denialDetail(tenant)}
	}

	if err := e.RecordUsage(ctx, tenant.ID, ActionAPICall, nil); err != nil {
		e.logger.Error("recording api_call usage", "tenant_id", tenant.ID, "error", err)
	}
	tenant.UsageCount++

	return GateResult{Allowed: true, Tenant: tenant}
}

// GateTenant re-evaluates the quota gate for an already-authenticated
// tenant, by id rather than by credential. The audit orchestrator uses this
// to re-check quota immediately before running (spec §4.G step 1) without
// re-resolving the credential a second time.
func (e *Engine) GateTenant(ctx context.Context, tenantID uuid.UUID) GateResult {
	if err := e.RollIfExpired(ctx, tenantID); err != nil {
		e.logger.Error("rollover during orchestrator gate re-check", "tenant_id", tenantID, "error", err)
	}

	tenant, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return GateResult{Allowed: false, Reason: DeniedInvalidCredential}
	}

	if tenant.Status != StatusActive {
		status := string(tenant.Status)
		return GateResult{Allowed: false, Reason: DeniedSubscriptionInactive, Detail: Detail{Status: &status}}
	}

	if tenant.UsageCount >= tenant.Allowance {
		return GateResult{Allowed: false, Reason: DeniedRateLimitExceeded, Detail: e.denialDetail(tenant)}
	}

	return GateResult{Allowed: true, Tenant: tenant}
}

// CurrentCycleTag returns the YYYY-MM tag of tenantID's active cycle, used
// to stamp a newly persisted audit (spec §4.G step 5).
func (e *Engine) CurrentCycleTag(ctx context.Context, tenantID uuid.UUID) (string, error) {
	tenant, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("fetching tenant: %w", err)
	}
	return billingCycleTag(tenant.CycleStart), nil
}

// denialDetail builds the extra fields a 429 response carries (spec §6).
func (e *Engine) denialDetail(t Tenant) Detail {
	usage := t.UsageCount
	limit := t.Allowance
	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}
	daysLeft := int(math.Ceil(t.CycleEnd.Sub(e.clock()).Hours() / 24))
	if daysLeft < 0 {
		daysLeft = 0
	}
	billingEnd := t.CycleEnd.UTC().Format(time.RFC3339)
	return Detail{
		CurrentUsage: &usage,
		Limit:        &limit,
		Remaining:    &remaining,
		DaysLeft:     &daysLeft,
		BillingEnd:   &billingEnd,
	}
}

// RecordUsage appends a usage event tagged with the current cycle (spec §4.D.3).
func (e *Engine) RecordUsage(ctx context.Context, tenantID uuid.UUID, action UsageAction, resourceID *uuid.UUID) error {
	now := e.clock()
	if err := e.store.InsertUsageEvent(ctx, tenantID, action, resourceID, now); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// RollIfExpired closes out an expired cycle and opens a fresh one (spec
// §4.D.4). The whole operation runs under the tenant's lock so at most one
// rollover per tenant commits (spec §5).
func (e *Engine) RollIfExpired(ctx context.Context, tenantID uuid.UUID) error {
	return e.lock.WithLock(ctx, tenantID, func(ctx context.Context) error {
		t, err := e.store.GetTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("fetching tenant: %w", err)
		}

		now := e.clock()
		if !now.After(t.CycleEnd) {
			return nil
		}

		usage, err := e.store.SumUsageInCycle(ctx, tenantID, t.CycleStart, t.CycleEnd)
		if err != nil {
			return fmt.Errorf("summing cycle usage: %w", err)
		}

		overage := usage - e.plans.Allowance(t.PlanID)
		if overage < 0 {
			overage = 0
		}

		// Step (c): archive before resetting cycle fields, so a crash
		// between them leaves usage recoverable (spec §4.D.4).
		if err := e.store.InsertBillingRecord(ctx, BillingRecord{
			ID:           uuid.New(),
			TenantID:     tenantID,
			CycleStart:   t.CycleStart,
			CycleEnd:     t.CycleEnd,
			FinalUsage:   usage,
			OverageCount: overage,
			Status:       BillingPending,
		}); err != nil {
			return fmt.Errorf("archiving billing record: %w", err)
		}

		newCycleEnd := nextBoundary(now, t.CycleKind)
		if err := e.store.UpdateCycle(ctx, tenantID, now, newCycleEnd, now, 0); err != nil {
			return fmt.Errorf("resetting cycle: %w", err)
		}

		cutoff := now.Add(-retentionWindow)
		if err := e.store.DeleteUsageEventsBefore(ctx, tenantID, cutoff); err != nil {
			e.logger.Error("pruning usage events", "tenant_id", tenantID, "error", err)
		}

		telemetry.CycleRolloverTotal.Inc()
		return nil
	})
}

// OverageFor computes the block-charge for a closed cycle's overage (spec
// §4.D.5, §8 S3): blocks = ceil(overage/100), charge = blocks * overage_rate.
func (e *Engine) OverageFor(overage int, planID string) (blocks int, charge float64) {
	if overage <= 0 {
		return 0, 0
	}
	blocks = int(math.Ceil(float64(overage) / 100))
	charge = float64(blocks) * e.plans.OverageRate(planID)
	return blocks, charge
}

// ChangePlan updates plan identifier and allowance; it only re-initializes
// the current cycle if cycleKind is supplied and differs from the current
// one (spec §4.D.6). In-flight cycle usage is neither archived nor zeroed.
func (e *Engine) ChangePlan(ctx context.Context, tenantID uuid.UUID, newPlanID string, cycleKind *CycleKind) error {
	t, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("fetching tenant: %w", err)
	}

	allowance := e.plans.Allowance(newPlanID)

	var cycleStart, cycleEnd *time.Time
	if cycleKind != nil && *cycleKind != t.CycleKind {
		now := e.clock()
		end := nextBoundary(now, *cycleKind)
		cycleStart, cycleEnd = &now, &end
	}

	if err := e.store.UpdatePlan(ctx, tenantID, newPlanID, allowance, cycleKind, cycleStart, cycleEnd); err != nil {
		return fmt.Errorf("changing plan: %w", err)
	}
	return nil
}

// Alerts emits threshold events for a tenant's current cycle (spec §4.D.7).
func (e *Engine) Alerts(t Tenant) []Alert {
	var alerts []Alert
	if t.Allowance <= 0 {
		return alerts
	}

	ratio := float64(t.UsageCount) / float64(t.Allowance)
	switch {
	case ratio >= 1:
		alerts = append(alerts, Alert{TenantID: t.ID, Kind: AlertUsage100})
	case ratio >= 0.9:
		alerts = append(alerts, Alert{TenantID: t.ID, Kind: AlertUsage90})
	case ratio >= 0.8:
		alerts = append(alerts, Alert{TenantID: t.ID, Kind: AlertUsage80})
	}

	daysLeft := t.CycleEnd.Sub(e.clock()).Hours() / 24
	if daysLeft <= 3 && ratio > 0.5 {
		alerts = append(alerts, Alert{TenantID: t.ID, Kind: AlertCycleEndingSoon})
	}

	return alerts
}

// ErrTenantNotFound is a sentinel the store may wrap for GetTenant misses.
var ErrTenantNotFound = errors.New("tenant not found")
