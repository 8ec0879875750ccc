// Package site implements tenant-owned site registration and the audit
// dispatch it triggers (spec §3 Site, §6 /sites routes).
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Status is a site's lifecycle state, driven solely by the audit
// orchestrator once a site is created (spec §3).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Site is the persisted site row (spec §3).
type Site struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	URL         string         `json:"url"`
	Name        string         `json:"name,omitempty"`
	Status      Status         `json:"status"`
	LastAuditID *uuid.UUID     `json:"last_audit_id,omitempty"`
	LastScore   *int           `json:"last_score,omitempty"`
	AuditCount  int            `json:"audit_count"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// CreateRequest is the validated body of POST /sites.
type CreateRequest struct {
	URL      string         `json:"url" validate:"required,url"`
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings"`
}

// ErrDuplicateURL is returned when (tenant, url) already has a site (spec
// §7: "POST /sites is idempotent on (tenant, url)").
var ErrDuplicateURL = errors.New("site with this url already exists for tenant")

// ErrNotFound is returned when no site matches the requested id for the
// requesting tenant.
var ErrNotFound = errors.New("site not found")

// Store persists site rows.
type Store interface {
	Insert(ctx context.Context, tenantID uuid.UUID, url, name string, settings map[string]any) (Site, error)
	Get(ctx context.Context, tenantID, siteID uuid.UUID) (Site, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Site, error)
	UpdateStatus(ctx context.Context, siteID uuid.UUID, status Status) error
	CompleteAudit(ctx context.Context, siteID, auditID uuid.UUID, score int) error
}

// AuditDispatcher queues a background audit task (spec §4.G). It is
// implemented by internal/workerpool.Pool in production.
type AuditDispatcher interface {
	Enqueue(siteID uuid.UUID, url string, tenantID uuid.UUID) bool
}

// Service orchestrates site registration and audit queueing.
type Service struct {
	store      Store
	dispatcher AuditDispatcher
	logger     *slog.Logger
}

// NewService builds a site Service.
func NewService(store Store, dispatcher AuditDispatcher, logger *slog.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, logger: logger}
}

// Create registers a site and immediately enqueues its first audit, per
// spec §6 ("background audit crawls" following POST /sites).
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req CreateRequest) (Site, error) {
	row, err := s.store.Insert(ctx, tenantID, req.URL, req.Name, req.Settings)
	if err != nil {
		return Site{}, err
	}

	if !s.dispatcher.Enqueue(row.ID, row.URL, tenantID) {
		s.logger.Error("audit queue full, dropping initial audit", "site_id", row.ID)
	}

	return row, nil
}

// Get fetches a site scoped to tenantID, never leaking another tenant's row
// (spec §6: "404 if not owned").
func (s *Service) Get(ctx context.Context, tenantID, siteID uuid.UUID) (Site, error) {
	return s.store.Get(ctx, tenantID, siteID)
}

// List returns all sites owned by tenantID.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Site, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// QueueAudit re-enqueues an audit for an existing site (spec §6 POST
// /sites/{id}/audit).
func (s *Service) QueueAudit(ctx context.Context, tenantID, siteID uuid.UUID) error {
	row, err := s.store.Get(ctx, tenantID, siteID)
	if err != nil {
		return err
	}

	if !s.dispatcher.Enqueue(row.ID, row.URL, tenantID) {
		return fmt.Errorf("audit queue is full")
	}
	return nil
}
