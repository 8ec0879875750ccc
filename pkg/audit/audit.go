// Package audit defines the immutable audit record produced by one
// crawl+analyze pass over a site (spec §3 Audit).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Issue is one triggered scoring rule (spec §4.F).
type Issue struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Penalty  int    `json:"penalty"`
	Message  string `json:"message"`
	PageURL  string `json:"page_url"`
}

// Audit is the immutable, once-written audit record (spec §3).
type Audit struct {
	ID            uuid.UUID `json:"id"`
	SiteID        uuid.UUID `json:"site_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Score         int       `json:"score"`
	Issues        []Issue   `json:"issues"`
	PagesAnalyzed int       `json:"pages_analyzed"`
	CreatedAt     time.Time `json:"created_at"`
	BillingCycle  string    `json:"billing_cycle"`
}

const auditColumns = `id, site_id, tenant_id, score, issues, pages_analyzed, created_at, billing_cycle`

// Store persists audit rows.
type Store interface {
	Insert(ctx context.Context, a Audit) error
	ListBySite(ctx context.Context, tenantID, siteID uuid.UUID) ([]Audit, error)
}

// PostgresStore is the pgx-backed audit Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert writes an audit record exactly once (spec §3: "Immutable once
// written").
func (s *PostgresStore) Insert(ctx context.Context, a Audit) error {
	query := `INSERT INTO audits (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.pool.Exec(ctx, query, a.ID, a.SiteID, a.TenantID, a.Score, a.Issues, a.PagesAnalyzed, a.CreatedAt, a.BillingCycle); err != nil {
		return fmt.Errorf("inserting audit: %w", err)
	}
	return nil
}

// ListBySite returns every audit for a site, newest first, scoped to tenantID
// so one tenant can never read another's audit history.
func (s *PostgresStore) ListBySite(ctx context.Context, tenantID, siteID uuid.UUID) ([]Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM audits WHERE tenant_id = $1 AND site_id = $2 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, tenantID, siteID)
	if err != nil {
		return nil, fmt.Errorf("listing audits: %w", err)
	}
	defer rows.Close()

	var out []Audit
	for rows.Next() {
		var a Audit
		if err := scanAuditRow(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return out, nil
}

func scanAuditRow(row pgx.Rows, a *Audit) error {
	return row.Scan(&a.ID, &a.SiteID, &a.TenantID, &a.Score, &a.Issues, &a.PagesAnalyzed, &a.CreatedAt, &a.BillingCycle)
}
