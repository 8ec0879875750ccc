// Package tenant implements registration and lookup for AutoSEO tenants
// (spec §3 Tenant, §6 POST /tenants), composing the plan catalog, billing
// engine, and credential service at signup.
package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/credential"
	"github.com/shakhawat2680/autoseo/pkg/plan"
)

// Tenant is the full tenant record (spec §3). Billing-relevant fields
// mirror billing.Tenant; this type additionally carries identity fields
// the billing engine has no business knowing about.
type Tenant struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Settings map[string]any `json:"settings"`
	billing.Tenant
}

// RegisterRequest is the validated body of POST /tenants.
type RegisterRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	PlanType     string `json:"plan_type" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
}

// RegisterResponse is returned once, at registration, carrying the
// plaintext credential the client must store (spec §4.C).
type RegisterResponse struct {
	Tenant     Tenant `json:"tenant"`
	Credential string `json:"credential"`
}

// ErrDuplicateEmail is returned when email is already registered.
var ErrDuplicateEmail = fmt.Errorf("email already registered")

// Store persists tenant identity rows. Billing-cycle fields are owned by
// billing.Store; this Store only manages the identity half of the row.
type Store interface {
	Insert(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service orchestrates tenant registration: plan resolution, cycle
// initialization, and credential issuance.
type Service struct {
	store       Store
	catalog     *plan.Catalog
	billing     *billing.Engine
	credentials *credential.Service
	logger      *slog.Logger
}

// NewService builds a tenant Service.
func NewService(store Store, catalog *plan.Catalog, billingEngine *billing.Engine, credentials *credential.Service, logger *slog.Logger) *Service {
	return &Service{store: store, catalog: catalog, billing: billingEngine, credentials: credentials, logger: logger}
}

// Register creates a tenant, initializes its billing cycle, and issues its
// first credential, per spec §4.D.1 and §4.C.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	p := s.catalog.Resolve(req.PlanType)
	cycleKind := billing.CycleKind(req.BillingCycle)

	id := uuid.New()
	row, err := s.store.Insert(ctx, Tenant{
		ID:    id,
		Name:  req.Name,
		Email: req.Email,
		Tenant: billing.Tenant{
			ID: id, PlanID: p.ID, CycleKind: cycleKind,
			Allowance: p.Allowance, Status: billing.StatusActive,
		},
	})
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("registering tenant: %w", err)
	}

	cycleStart, cycleEnd, err := s.billing.Initialize(ctx, row.ID, cycleKind)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("initializing billing cycle: %w", err)
	}
	row.CycleStart, row.CycleEnd, row.LastReset = cycleStart, cycleEnd, cycleStart

	issued, err := s.credentials.Issue(ctx, row.ID)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("issuing credential: %w", err)
	}

	return RegisterResponse{Tenant: row, Credential: issued.Raw}, nil
}

// Get fetches a tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.store.Get(ctx, id)
}
