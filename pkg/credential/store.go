package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no credential matches the requested digest.
var ErrNotFound = errors.New("credential not found")

const credentialColumns = `id, tenant_id, digest, revoked, created_at`

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanCredentialRow(row pgx.Row) (Credential, error) {
	var c Credential
	err := row.Scan(&c.ID, &c.TenantID, &c.Digest, &c.Revoked, &c.CreatedAt)
	return c, err
}

// Insert stores a new credential digest for tenantID.
func (s *PostgresStore) Insert(ctx context.Context, tenantID uuid.UUID, digest string) (Credential, error) {
	query := `INSERT INTO credentials (tenant_id, digest, revoked)
		VALUES ($1, $2, false)
		RETURNING ` + credentialColumns

	row := s.pool.QueryRow(ctx, query, tenantID, digest)
	c, err := scanCredentialRow(row)
	if err != nil {
		return Credential{}, fmt.Errorf("inserting credential: %w", err)
	}
	return c, nil
}

// FindByDigest looks up a credential by its digest.
func (s *PostgresStore) FindByDigest(ctx context.Context, digest string) (Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE digest = $1`

	row := s.pool.QueryRow(ctx, query, digest)
	c, err := scanCredentialRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("finding credential: %w", err)
	}
	return c, nil
}

// RevokeAllForTenant marks every credential belonging to tenantID as revoked.
func (s *PostgresStore) RevokeAllForTenant(ctx context.Context, tenantID uuid.UUID) error {
	query := `UPDATE credentials SET revoked = true WHERE tenant_id = $1 AND revoked = false`
	if _, err := s.pool.Exec(ctx, query, tenantID); err != nil {
		return fmt.Errorf("revoking credentials: %w", err)
	}
	return nil
}
