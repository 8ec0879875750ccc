// Package billing implements the tenant-scoped quota and billing-cycle
// engine: the gate every authenticated request passes through, cycle
// rollover, overage accounting, and plan changes.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// CycleKind names the period over which a tenant's allowance resets.
type CycleKind string

const (
	CycleMonthly CycleKind = "monthly"
	CycleYearly  CycleKind = "yearly"
)

// SubscriptionStatus tracks whether a tenant's access is currently gated.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusTrial    SubscriptionStatus = "trial"
)

// Tenant is the billing-relevant projection of a tenant row. The full
// tenant record (name, email, settings) lives in pkg/tenant; this engine
// only needs the fields it reads and mutates.
type Tenant struct {
	ID         uuid.UUID          `json:"id"`
	PlanID     string             `json:"plan_id"`
	CycleKind  CycleKind          `json:"cycle_kind"`
	UsageCount int                `json:"usage_count"`
	Allowance  int                `json:"allowance"`
	Status     SubscriptionStatus `json:"status"`
	CycleStart time.Time          `json:"cycle_start"`
	CycleEnd   time.Time          `json:"cycle_end"`
	LastReset  time.Time          `json:"last_reset"`
}

// UsageAction tags what kind of event was recorded.
type UsageAction string

const (
	ActionAPICall        UsageAction = "api_call"
	ActionAuditCompleted UsageAction = "audit_completed"
)

// UsageEvent is one append-only usage record (spec §3).
type UsageEvent struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Action       UsageAction
	ResourceID   *uuid.UUID
	OccurredAt   time.Time
	BillingCycle string // YYYY-MM of OccurredAt
}

// BillingStatus is the lifecycle state of an archived billing record.
type BillingStatus string

const (
	BillingPending BillingStatus = "pending"
	BillingPaid    BillingStatus = "paid"
	BillingFailed  BillingStatus = "failed"
)

// BillingRecord is an immutable archive of one closed cycle (spec §3).
type BillingRecord struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	CycleStart     time.Time
	CycleEnd       time.Time
	FinalUsage     int
	OverageCount   int
	Status         BillingStatus
	PaymentDate    *time.Time
	Amount         *float64
	InvoiceRef     *string
}

// DenialReason names why the gate refused a request, mirroring the tagged
// Ok(tenant) | Denied(reason, detail) outcome shape (spec §9).
type DenialReason string

const (
	DeniedInvalidCredential    DenialReason = "invalid_credential"
	DeniedSubscriptionInactive DenialReason = "subscription_inactive"
	DeniedRateLimitExceeded    DenialReason = "rate_limit_exceeded"
)

// Detail carries the extra context the API facade attaches to 402/429
// responses (spec §6, "Gate error bodies").
type Detail struct {
	CurrentUsage *int
	Limit        *int
	Remaining    *int
	DaysLeft     *int
	BillingEnd   *string
	Status       *string
}

// GateResult is the tagged outcome of authenticate_and_gate: exactly one
// of Tenant (on success) or Reason+Detail (on denial) is populated.
type GateResult struct {
	Allowed bool
	Tenant  Tenant
	Reason  DenialReason
	Detail  Detail
}

// AlertKind enumerates the threshold events alerts() emits (spec §4.D.7).
type AlertKind string

const (
	AlertUsage80         AlertKind = "usage_80"
	AlertUsage90         AlertKind = "usage_90"
	AlertUsage100        AlertKind = "usage_100"
	AlertCycleEndingSoon AlertKind = "cycle_ending_soon"
)

// Alert is one threshold event produced by alerts().
type Alert struct {
	TenantID uuid.UUID
	Kind     AlertKind
}

// retentionWindow is how long usage events survive past rollover (spec §4.D.4).
const retentionWindow = 90 * 24 * time.Hour
