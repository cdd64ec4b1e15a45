package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/config"
	"github.com/spec-kit/ticketbot/internal/counter"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/observability"
	"github.com/spec-kit/ticketbot/internal/persistence"
	"github.com/spec-kit/ticketbot/internal/platform"
	"github.com/spec-kit/ticketbot/internal/repository"
	"github.com/spec-kit/ticketbot/internal/repository/memory"
	"github.com/spec-kit/ticketbot/internal/scheduler"
	"github.com/spec-kit/ticketbot/internal/service"
	"github.com/spec-kit/ticketbot/internal/transcript"
)

// stores is the repository set the services run on.
type stores struct {
	tenants       repository.TenantConfigRepository
	tickets       repository.TicketRepository
	history       repository.TicketHistoryRepository
	closeRequests repository.CloseRequestRepository
	exclusions    repository.ExclusionRepository
}

// application holds every wired component of one process.
type application struct {
	cfg        *config.Config
	logger     *zap.Logger
	postgres   *persistence.Postgres
	redis      *persistence.Redis
	metrics    *observability.Metrics
	scheduler  *scheduler.Scheduler
	dispatcher events.Dispatcher
	platform   platform.Platform

	tenants   *service.TenantService
	tickets   *service.TicketService
	requests  *service.CloseRequestService
	cleanup   *service.CleanupService
	reconcile *service.ReconcileService
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApplication opens storage and wires the services. Callers must Close it.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	app := &application{
		cfg:        cfg,
		logger:     logger,
		postgres:   pg,
		redis:      persistence.NewRedis(cfg.Redis, logger),
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(logger),
	}
	clk := clock.Real()
	app.scheduler = scheduler.New(clk, logger)

	if cfg.Gateway.BaseURL != "" {
		app.platform = platform.NewGateway(platform.GatewayConfig{
			BaseURL: cfg.Gateway.BaseURL,
			Token:   cfg.Gateway.Token,
			Timeout: cfg.Gateway.Timeout,
		}, logger)
	} else {
		logger.Warn("GATEWAY_BASE_URL not provided; using in-memory platform")
		app.platform = platform.NewMemory()
	}

	st := openStores(pg)

	tenantDeps := service.TenantDependencies{
		Repo:   st.tenants,
		Clock:  clk,
		TTL:    cfg.Redis.CacheTTL,
		Logger: logger,
	}
	if app.redis != nil {
		tenantDeps.Cache = app.redis
	}
	app.tenants = service.NewTenantService(tenantDeps)

	seq := counter.New(st.tenants, logger)
	oplog := service.NewOperatorLog(app.platform, app.tenants, app.metrics, logger)

	app.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:       st.tickets,
		HistoryRepo:      st.history,
		CloseRequestRepo: st.closeRequests,
		Tenants:          app.tenants,
		Counter:          seq,
		Platform:         app.platform,
		Renderer:         transcript.NewFileRenderer(cfg.Workflow.TranscriptDir, clk.Now),
		Scheduler:        app.scheduler,
		Dispatcher:       app.dispatcher,
		OperatorLog:      oplog,
		Metrics:          app.metrics,
		Clock:            clk,
		Logger:           logger,
		Workflow:         cfg.Workflow,
	})
	app.requests = service.NewCloseRequestService(service.CloseRequestDependencies{
		CloseRequestRepo: st.closeRequests,
		ExclusionRepo:    st.exclusions,
		HistoryRepo:      st.history,
		Tickets:          app.tickets,
		Tenants:          app.tenants,
		Scheduler:        app.scheduler,
		Dispatcher:       app.dispatcher,
		OperatorLog:      oplog,
		Metrics:          app.metrics,
		Clock:            clk,
		Logger:           logger,
		Workflow:         cfg.Workflow,
	})
	service.NewNotificationService(app.dispatcher, app.platform, app.requests, logger).RegisterHandlers()

	app.cleanup = service.NewCleanupService(app.tenants, st.tickets, st.closeRequests, oplog, clk, logger)
	app.reconcile = service.NewReconcileService(app.tenants, st.tickets, seq, app.platform, logger)
	return app, nil
}

func openStores(pg *persistence.Postgres) stores {
	if !pg.Enabled() {
		mem := memory.New()
		return stores{
			tenants:       mem.Tenants,
			tickets:       mem.Tickets,
			history:       mem.History,
			closeRequests: mem.CloseRequests,
			exclusions:    mem.Exclusions,
		}
	}
	pool := pg.PoolHandle()
	return stores{
		tenants:       repository.NewTenantConfigRepository(pool),
		tickets:       repository.NewTicketRepository(pool),
		history:       repository.NewTicketHistoryRepository(pool),
		closeRequests: repository.NewCloseRequestRepository(pool),
		exclusions:    repository.NewExclusionRepository(pool),
	}
}

// restoreState re-arms pending close requests and repairs ticket counters.
func (a *application) restoreState(ctx context.Context) {
	armed, err := a.requests.RearmPending(ctx)
	if err != nil {
		a.logger.Error("failed to re-arm pending close requests", zap.Error(err))
	} else {
		a.logger.Info("pending close requests re-armed", zap.Int("count", armed))
	}
	if _, err := a.reconcile.ReconcileAll(ctx); err != nil {
		a.logger.Warn("counter reconciliation incomplete", zap.Error(err))
	}
}

func (a *application) Close() {
	a.scheduler.Stop()
	a.redis.Close()
	a.postgres.Close()
}
