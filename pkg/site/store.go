package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const siteColumns = `id, tenant_id, url, name, status, last_audit_id, last_score, audit_count, settings`

// PostgresStore is the pgx-backed site Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanSiteRow(row pgx.Row) (Site, error) {
	var s Site
	err := row.Scan(&s.ID, &s.TenantID, &s.URL, &s.Name, &s.Status, &s.LastAuditID, &s.LastScore, &s.AuditCount, &s.Settings)
	return s, err
}

func scanSiteRows(rows pgx.Rows) ([]Site, error) {
	defer rows.Close()
	var items []Site
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.TenantID, &s.URL, &s.Name, &s.Status, &s.LastAuditID, &s.LastScore, &s.AuditCount, &s.Settings); err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating site rows: %w", err)
	}
	return items, nil
}

// Insert creates a new site row. A unique-violation on (tenant_id, url) is
// translated to ErrDuplicateURL (spec §7 idempotency).
func (s *PostgresStore) Insert(ctx context.Context, tenantID uuid.UUID, url, name string, settings map[string]any) (Site, error) {
	query := `INSERT INTO sites (id, tenant_id, url, name, status, audit_count, settings)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		RETURNING ` + siteColumns

	row := s.pool.QueryRow(ctx, query, uuid.New(), tenantID, url, name, string(StatusPending), settings)
	created, err := scanSiteRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Site{}, ErrDuplicateURL
		}
		return Site{}, fmt.Errorf("inserting site: %w", err)
	}
	return created, nil
}

// Get fetches a site scoped to tenantID.
func (s *PostgresStore) Get(ctx context.Context, tenantID, siteID uuid.UUID) (Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1 AND tenant_id = $2`
	row := s.pool.QueryRow(ctx, query, siteID, tenantID)
	site, err := scanSiteRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Site{}, ErrNotFound
		}
		return Site{}, fmt.Errorf("fetching site: %w", err)
	}
	return site, nil
}

// ListByTenant returns all sites owned by tenantID.
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE tenant_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	return scanSiteRows(rows)
}

// UpdateStatus sets a site's lifecycle status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, siteID uuid.UUID, status Status) error {
	if _, err := s.pool.Exec(ctx, `UPDATE sites SET status = $2, updated_at = now() WHERE id = $1`, siteID, string(status)); err != nil {
		return fmt.Errorf("updating site status: %w", err)
	}
	return nil
}

// CompleteAudit transitions a site to completed and records its latest
// audit result (spec §4.G step 6).
func (s *PostgresStore) CompleteAudit(ctx context.Context, siteID, auditID uuid.UUID, score int) error {
	query := `UPDATE sites SET status = $2, last_audit_id = $3, last_score = $4, audit_count = audit_count + 1, updated_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, siteID, string(StatusCompleted), auditID, score); err != nil {
		return fmt.Errorf("completing audit: %w", err)
	}
	return nil
}
