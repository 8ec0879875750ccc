package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shakhawat2680/autoseo/internal/telemetry"
	"github.com/shakhawat2680/autoseo/pkg/analyzer"
	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/crawler"
	"github.com/shakhawat2680/autoseo/pkg/plan"
)

// SiteUpdater is the subset of pkg/site.Store the orchestrator needs to
// drive a site through its lifecycle (spec §4.G steps 2 and 6).
type SiteUpdater interface {
	UpdateStatus(ctx context.Context, siteID uuid.UUID, status SiteStatus) error
	CompleteAudit(ctx context.Context, siteID, auditID uuid.UUID, score int) error
}

// SiteStatus mirrors pkg/site.Status without importing pkg/site, which
// would otherwise create an import cycle (pkg/site depends on
// pkg/audit.Store for GET /sites/{id}/audits).
type SiteStatus string

const (
	SiteStatusRunning   SiteStatus = "running"
	SiteStatusFailed    SiteStatus = "failed"
	SiteStatusCompleted SiteStatus = "completed"
)

// Orchestrator runs the seven-step background audit task (spec §4.G).
type Orchestrator struct {
	sites   SiteUpdater
	audits  Store
	billing *billing.Engine
	plans   *plan.Catalog
	crawl   func(logger *slog.Logger) *crawler.Crawler
	logger  *slog.Logger
}

// NewOrchestrator builds an Orchestrator. crawl is a factory so every
// invocation of Run gets its own, never-shared Crawler instance (spec §5).
func NewOrchestrator(sites SiteUpdater, audits Store, billingEngine *billing.Engine, plans *plan.Catalog, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sites:   sites,
		audits:  audits,
		billing: billingEngine,
		plans:   plans,
		crawl:   crawler.New,
		logger:  logger,
	}
}

// Run executes the seven steps of spec §4.G for one (site, url, tenant).
// Any failure in steps 3-6 marks the site failed, logs, and returns; it is
// never propagated to the HTTP call that queued this task.
func (o *Orchestrator) Run(ctx context.Context, siteID, tenantID uuid.UUID, startURL string) {
	// Step 1: re-check the quota gate against current usage, since the
	// audit may have sat in the pool for a while since it was queued.
	gate := o.billing.GateTenant(ctx, tenantID)
	if !gate.Allowed {
		o.logger.Warn("audit denied at re-gate, marking site failed", "site_id", siteID, "tenant_id", tenantID, "reason", gate.Reason)
		o.markFailed(ctx, siteID)
		return
	}

	telemetry.AuditsStartedTotal.Inc()

	if err := o.sites.UpdateStatus(ctx, siteID, SiteStatusRunning); err != nil {
		o.logger.Error("transitioning site to running", "site_id", siteID, "error", err)
		return
	}

	p := o.plans.Resolve(gate.Tenant.PlanID)
	c := o.crawl(o.logger)
	pages, err := c.Crawl(ctx, startURL, p.MaxPagesPerAudit)
	if err != nil || len(pages) == 0 {
		o.logger.Error("crawl failed or yielded no pages", "site_id", siteID, "url", startURL, "error", err)
		o.markFailed(ctx, siteID)
		return
	}

	result := analyzer.Analyze(pages)

	cycleTag, err := o.billing.CurrentCycleTag(ctx, tenantID)
	if err != nil {
		o.logger.Error("resolving billing cycle for audit", "site_id", siteID, "error", err)
		o.markFailed(ctx, siteID)
		return
	}

	record := Audit{
		ID:            uuid.New(),
		SiteID:        siteID,
		TenantID:      tenantID,
		Score:         result.Score,
		Issues:        result.Issues,
		PagesAnalyzed: result.PagesAnalyzed,
		BillingCycle:  cycleTag,
		CreatedAt:     time.Now(),
	}
	if err := o.audits.Insert(ctx, record); err != nil {
		o.logger.Error("persisting audit", "site_id", siteID, "error", err)
		o.markFailed(ctx, siteID)
		return
	}

	if err := o.sites.CompleteAudit(ctx, siteID, record.ID, record.Score); err != nil {
		o.logger.Error("completing site audit", "site_id", siteID, "error", err)
		o.markFailed(ctx, siteID)
		return
	}

	if err := o.billing.RecordUsage(ctx, tenantID, billing.ActionAuditCompleted, &record.ID); err != nil {
		o.logger.Error("recording audit_completed usage event", "site_id", siteID, "error", err)
	}

	telemetry.AuditsCompletedTotal.WithLabelValues("completed").Inc()
}

// markFailed transitions a site to failed, logging (not propagating) any
// further error from the transition itself.
func (o *Orchestrator) markFailed(ctx context.Context, siteID uuid.UUID) {
	if err := o.sites.UpdateStatus(ctx, siteID, SiteStatusFailed); err != nil {
		o.logger.Error("marking site failed", "site_id", siteID, "error", err)
	}
	telemetry.AuditsCompletedTotal.WithLabelValues("failed").Inc()
}
