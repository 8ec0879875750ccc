package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shakhawat2680/autoseo/pkg/billing"
)

// ErrNotFound is returned when no tenant matches the requested id.
var ErrNotFound = errors.New("tenant not found")

const tenantColumns = `id, name, email, plan_id, cycle_kind, usage_count, allowance, status, cycle_start, cycle_end, last_reset, settings`

// PostgresStore is the pgx-backed tenant Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanTenantRow(row pgx.Row) (Tenant, error) {
	var t Tenant
	var planID, cycleKind, status string
	var settings map[string]any
	err := row.Scan(
		&t.ID, &t.Name, &t.Email, &planID, &cycleKind, &t.UsageCount, &t.Allowance,
		&status, &t.CycleStart, &t.CycleEnd, &t.LastReset, &settings,
	)
	if err != nil {
		return Tenant{}, err
	}
	t.Tenant.ID = t.ID
	t.PlanID = planID
	t.CycleKind = billing.CycleKind(cycleKind)
	t.Status = billing.SubscriptionStatus(status)
	t.Settings = settings
	return t, nil
}

// Insert creates a new tenant row. A unique-violation on email is
// translated to ErrDuplicateEmail (spec §6: "400 on duplicate email").
func (s *PostgresStore) Insert(ctx context.Context, t Tenant) (Tenant, error) {
	query := `INSERT INTO tenants (id, name, email, plan_id, cycle_kind, usage_count, allowance, status, cycle_start, cycle_end, last_reset, settings)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, now(), now(), now(), '{}'::jsonb)
		RETURNING ` + tenantColumns

	row := s.pool.QueryRow(ctx, query,
		t.ID, t.Name, t.Email, t.PlanID, string(t.CycleKind), t.Allowance, string(t.Status),
	)
	created, err := scanTenantRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrDuplicateEmail
		}
		return Tenant{}, fmt.Errorf("inserting tenant: %w", err)
	}
	return created, nil
}

// Get fetches a tenant by id.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTenantRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("fetching tenant: %w", err)
	}
	return t, nil
}

// Delete removes a tenant and all owned records with a single DELETE of the
// tenant row: every owning table's FK carries ON DELETE CASCADE, so
// credentials, sites, audits, usage events and billing records go with it
// in the same statement.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// billingStore adapts PostgresStore to billing.Store, exposing only the
// cycle/usage operations the billing engine needs. Kept in this file since
// both wrap the same tenants table.
type billingStore struct {
	pool *pgxpool.Pool
}

// NewBillingStore builds the billing.Store implementation backed by the
// tenants/usage_logs/billing_history tables.
func NewBillingStore(pool *pgxpool.Pool) *billingStore {
	return &billingStore{pool: pool}
}

func (s *billingStore) GetTenant(ctx context.Context, tenantID uuid.UUID) (billing.Tenant, error) {
	query := `SELECT id, plan_id, cycle_kind, usage_count, allowance, status, cycle_start, cycle_end, last_reset
		FROM tenants WHERE id = $1`
	var t billing.Tenant
	var cycleKind, status string
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&t.ID, &t.PlanID, &cycleKind, &t.UsageCount, &t.Allowance, &status, &t.CycleStart, &t.CycleEnd, &t.LastReset,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Tenant{}, billing.ErrTenantNotFound
		}
		return billing.Tenant{}, fmt.Errorf("fetching tenant: %w", err)
	}
	t.CycleKind = billing.CycleKind(cycleKind)
	t.Status = billing.SubscriptionStatus(status)
	return t, nil
}

func (s *billingStore) UpdateCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd, lastReset time.Time, usageCount int) error {
	query := `UPDATE tenants SET cycle_start = $2, cycle_end = $3, last_reset = $4, usage_count = $5 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, tenantID, cycleStart, cycleEnd, lastReset, usageCount); err != nil {
		return fmt.Errorf("updating cycle: %w", err)
	}
	return nil
}

func (s *billingStore) UpdatePlan(ctx context.Context, tenantID uuid.UUID, planID string, allowance int, cycleKind *billing.CycleKind, cycleStart, cycleEnd *time.Time) error {
	if cycleKind != nil && cycleStart != nil && cycleEnd != nil {
		query := `UPDATE tenants SET plan_id = $2, allowance = $3, cycle_kind = $4, cycle_start = $5, cycle_end = $6 WHERE id = $1`
		if _, err := s.pool.Exec(ctx, query, tenantID, planID, allowance, string(*cycleKind), *cycleStart, *cycleEnd); err != nil {
			return fmt.Errorf("changing plan: %w", err)
		}
		return nil
	}
	query := `UPDATE tenants SET plan_id = $2, allowance = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, tenantID, planID, allowance); err != nil {
		return fmt.Errorf("changing plan: %w", err)
	}
	return nil
}

func (s *billingStore) InsertUsageEvent(ctx context.Context, tenantID uuid.UUID, action billing.UsageAction, resourceID *uuid.UUID, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle := at.UTC().Format("2006-01")
	if _, err := tx.Exec(ctx,
		`INSERT INTO usage_logs (id, tenant_id, action, resource_id, occurred_at, billing_cycle) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), tenantID, string(action), resourceID, at, cycle,
	); err != nil {
		return fmt.Errorf("inserting usage event: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE tenants SET usage_count = usage_count + 1 WHERE id = $1`, tenantID); err != nil {
		return fmt.Errorf("incrementing usage counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage tx: %w", err)
	}
	return nil
}

func (s *billingStore) SumUsageInCycle(ctx context.Context, tenantID uuid.UUID, cycleStart, cycleEnd time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM usage_logs WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3`
	if err := s.pool.QueryRow(ctx, query, tenantID, cycleStart, cycleEnd).Scan(&count); err != nil {
		return 0, fmt.Errorf("summing usage: %w", err)
	}
	return count, nil
}

func (s *billingStore) InsertBillingRecord(ctx context.Context, rec billing.BillingRecord) error {
	query := `INSERT INTO billing_history (id, tenant_id, cycle_start, cycle_end, final_usage, overage_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.TenantID, rec.CycleStart, rec.CycleEnd, rec.FinalUsage, rec.OverageCount, string(rec.Status)); err != nil {
		return fmt.Errorf("inserting billing record: %w", err)
	}
	return nil
}

func (s *billingStore) DeleteUsageEventsBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM usage_logs WHERE tenant_id = $1 AND occurred_at < $2`, tenantID, cutoff); err != nil {
		return fmt.Errorf("pruning usage events: %w", err)
	}
	return nil
}

func (s *billingStore) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	query := `SELECT id, plan_id, cycle_kind, usage_count, allowance, status, cycle_start, cycle_end, last_reset FROM tenants`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var out []billing.Tenant
	for rows.Next() {
		var t billing.Tenant
		var cycleKind, status string
		if err := rows.Scan(&t.ID, &t.PlanID, &cycleKind, &t.UsageCount, &t.Allowance, &status, &t.CycleStart, &t.CycleEnd, &t.LastReset); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		t.CycleKind = billing.CycleKind(cycleKind)
		t.Status = billing.SubscriptionStatus(status)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}
	return out, nil
}

func (s *billingStore) ListBillingHistory(ctx context.Context, tenantID uuid.UUID) ([]billing.BillingRecord, error) {
	query := `SELECT id, tenant_id, cycle_start, cycle_end, final_usage, overage_count, status, payment_date, amount, invoice_ref
		FROM billing_history WHERE tenant_id = $1 ORDER BY cycle_start DESC`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing billing history: %w", err)
	}
	defer rows.Close()

	var out []billing.BillingRecord
	for rows.Next() {
		var r billing.BillingRecord
		var status string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.CycleStart, &r.CycleEnd, &r.FinalUsage, &r.OverageCount, &status, &r.PaymentDate, &r.Amount, &r.InvoiceRef); err != nil {
			return nil, fmt.Errorf("scanning billing record: %w", err)
		}
		r.Status = billing.BillingStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating billing history: %w", err)
	}
	return out, nil
}

func (s *billingStore) RevenueByPlan(ctx context.Context, start, end time.Time) (map[string]float64, int, error) {
	query := `SELECT t.plan_id, coalesce(sum(bh.amount), 0), coalesce(sum(bh.overage_count), 0)
		FROM billing_history bh JOIN tenants t ON t.id = bh.tenant_id
		WHERE bh.payment_date >= $1 AND bh.payment_date < $2
		GROUP BY t.plan_id`
	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregating revenue: %w", err)
	}
	defer rows.Close()

	byPlan := map[string]float64{}
	totalOverage := 0
	for rows.Next() {
		var planID string
		var amount float64
		var overage int
		if err := rows.Scan(&planID, &amount, &overage); err != nil {
			return nil, 0, fmt.Errorf("scanning revenue row: %w", err)
		}
		byPlan[planID] = amount
		totalOverage += overage
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating revenue rows: %w", err)
	}
	return byPlan, totalOverage, nil
}
