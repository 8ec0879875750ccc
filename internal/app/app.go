// Package app wires the AutoSEO services together and starts either the
// api or worker runtime, mirroring the teacher's mode-switched Run entry
// point (internal/app.Run) but with nightowl's ops domain replaced end to
// end by AutoSEO's tenant/site/audit domain.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shakhawat2680/autoseo/internal/auth"
	"github.com/shakhawat2680/autoseo/internal/config"
	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/internal/platform"
	"github.com/shakhawat2680/autoseo/internal/telemetry"
	"github.com/shakhawat2680/autoseo/internal/workerpool"
	"github.com/shakhawat2680/autoseo/pkg/account"
	"github.com/shakhawat2680/autoseo/pkg/admin"
	"github.com/shakhawat2680/autoseo/pkg/audit"
	"github.com/shakhawat2680/autoseo/pkg/billing"
	"github.com/shakhawat2680/autoseo/pkg/credential"
	"github.com/shakhawat2680/autoseo/pkg/notifier"
	"github.com/shakhawat2680/autoseo/pkg/plan"
	"github.com/shakhawat2680/autoseo/pkg/site"
	"github.com/shakhawat2680/autoseo/pkg/tenant"
)

// staleSiteThreshold is how long a site may stay "running" before the
// startup recovery sweep considers its audit task lost (spec §5: "a
// recovery sweep at startup must reset sites in running state older than a
// threshold to failed").
const staleSiteThreshold = time.Hour

// billingAlertSweepInterval is how often the worker checks every tenant's
// usage against billing.Engine.Alerts and forwards hits to the notifier
// (spec §4.D.7).
const billingAlertSweepInterval = time.Hour

// Run is the application entry point: load config, connect infrastructure,
// wire the domain, and start the selected runtime mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting autoseo", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// domain bundles every service the api and worker modes both need, so the
// two runtimes build identical dependency graphs from one place.
type domain struct {
	billingEngine *billing.Engine
	plans         *plan.Catalog
	tenantSvc     *tenant.Service
	siteSvc       *site.Service
	siteStore     *site.PostgresStore
	auditStore    *audit.PostgresStore
	adminSvc      *admin.Service
	accountSvc    *account.Service
	notify        notifier.Notifier
	pool          *workerpool.Pool
}

// siteUpdater adapts *site.PostgresStore to audit.SiteUpdater. pkg/audit
// defines its own SiteStatus rather than importing pkg/site (pkg/site
// depends on pkg/audit.Store for GET /sites/{id}/audits), so the two
// packages' status types are distinct and need a converting adapter at the
// one place that imports both.
type siteUpdater struct {
	store *site.PostgresStore
}

func (a siteUpdater) UpdateStatus(ctx context.Context, siteID uuid.UUID, status audit.SiteStatus) error {
	return a.store.UpdateStatus(ctx, siteID, site.Status(status))
}

func (a siteUpdater) CompleteAudit(ctx context.Context, siteID, auditID uuid.UUID, score int) error {
	return a.store.CompleteAudit(ctx, siteID, auditID, score)
}

// buildDomain constructs every service shared by both runtime modes. The
// worker pool is created but not started — callers decide when to call
// pool.Start (both runAPI and runWorker start it in-process).
func buildDomain(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) *domain {
	plans := plan.NewCatalog()

	credStore := credential.NewPostgresStore(db)
	credentials := credential.NewService(credStore)

	billingStore := tenant.NewBillingStore(db)
	lockTTL := time.Duration(cfg.TenantLockTTLMS) * time.Millisecond
	lock := billing.NewTenantLock(rdb, lockTTL)
	billingEngine := billing.NewEngine(billingStore, credentials, plans, lock, logger)

	tenantStore := tenant.NewPostgresStore(db)
	tenantSvc := tenant.NewService(tenantStore, plans, billingEngine, credentials, logger)

	siteStore := site.NewPostgresStore(db)
	auditStore := audit.NewPostgresStore(db)

	orchestrator := audit.NewOrchestrator(siteUpdater{siteStore}, auditStore, billingEngine, plans, logger)
	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerQueueSize, orchestrator, logger)

	siteSvc := site.NewService(siteStore, pool, logger)
	accountSvc := account.NewService(billingStore, plans, siteStore, logger)

	var notify notifier.Notifier = notifier.NopNotifier{}
	if cfg.SlackBotToken != "" {
		notify = notifier.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		logger.Info("slack notifier enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("slack notifier disabled (SLACK_BOT_TOKEN not set)")
	}

	adminSvc := admin.NewService(billingStore, billingEngine, plans, notify, logger)

	return &domain{
		billingEngine: billingEngine,
		plans:         plans,
		tenantSvc:     tenantSvc,
		siteSvc:       siteSvc,
		siteStore:     siteStore,
		auditStore:    auditStore,
		adminSvc:      adminSvc,
		accountSvc:    accountSvc,
		notify:        notify,
		pool:          pool,
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	d := buildDomain(cfg, logger, db, rdb)

	if err := recoverStaleSites(ctx, db, logger); err != nil {
		logger.Error("recovering stale sites at startup", "error", err)
	}

	d.pool.Start(ctx, cfg.WorkerPoolSize)
	defer d.pool.Stop()

	srv := httpserver.NewServer(httpserver.Config{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, db, rdb, metricsReg)

	tenantHandler := tenant.NewHandler(logger, d.tenantSvc)
	srv.Router.Mount("/tenants", tenantHandler.Routes())

	gate := auth.Gate(d.billingEngine)

	srv.Router.Group(func(r chi.Router) {
		r.Use(gate)
		r.Mount("/sites", site.NewHandler(logger, d.siteSvc, d.auditStore).Routes())
		r.Mount("/", account.NewHandler(logger, d.accountSvc).Routes())
	})

	adminGate := auth.AdminGate(cfg.AdminSharedSecret)
	srv.Router.Group(func(r chi.Router) {
		r.Use(adminGate)
		r.Mount("/admin", admin.NewHandler(logger, d.adminSvc).Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker runs the process with no HTTP surface: the startup stale-site
// sweep, the audit worker pool, and the periodic billing-alert sweep
// (grounded on the teacher's own api/worker mode split, cmd/nightowl
// -mode=worker). The audit queue is an in-memory channel, so jobs enqueued
// by a separate api process never reach this pool.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	d := buildDomain(cfg, logger, db, rdb)

	if err := recoverStaleSites(ctx, db, logger); err != nil {
		logger.Error("recovering stale sites at startup", "error", err)
	}

	d.pool.Start(ctx, cfg.WorkerPoolSize)
	logger.Info("worker started", "pool_size", cfg.WorkerPoolSize)

	go d.adminSvc.RunAlertSweepLoop(ctx, billingAlertSweepInterval)

	<-ctx.Done()
	logger.Info("shutting down worker")
	d.pool.Stop()
	return nil
}

// recoverStaleSites resets any site stuck in "running" past
// staleSiteThreshold back to "failed" (spec §5: process death mid-audit
// must not strand a site in running forever).
func recoverStaleSites(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) error {
	cutoff := time.Now().Add(-staleSiteThreshold)
	tag, err := db.Exec(ctx,
		`UPDATE sites SET status = 'failed' WHERE status = 'running' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("resetting stale running sites: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		logger.Warn("reset stale running sites to failed at startup", "count", n)
	}
	return nil
}
