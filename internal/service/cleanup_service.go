package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/repository"
)

// CleanupReport summarizes one retention sweep.
type CleanupReport struct {
	Tenants         int
	TicketsRemoved  int64
	RequestsRemoved int64
	FailedTenantIDs []string
}

// CleanupService removes inactive ticket records and resolved close requests
// older than each tenant's retention window.
type CleanupService struct {
	tenants  *TenantService
	tickets  repository.TicketRepository
	requests repository.CloseRequestRepository
	oplog    *OperatorLog
	clock    clock.Clock
	logger   *zap.Logger
}

// NewCleanupService constructs the service.
func NewCleanupService(tenants *TenantService, tickets repository.TicketRepository, requests repository.CloseRequestRepository, oplog *OperatorLog, clk clock.Clock, logger *zap.Logger) *CleanupService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if oplog == nil {
		oplog = NewOperatorLog(nil, tenants, nil, logger)
	}
	return &CleanupService{tenants: tenants, tickets: tickets, requests: requests, oplog: oplog, clock: clk, logger: logger}
}

// Run sweeps every tenant. A failing tenant is reported and skipped.
func (s *CleanupService) Run(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	cfgs, err := s.tenants.List(ctx)
	if err != nil {
		return report, err
	}

	var errs []error
	for i := range cfgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cfg := &cfgs[i]
		tickets, requests, err := s.RunTenant(ctx, cfg)
		report.Tenants++
		report.TicketsRemoved += tickets
		report.RequestsRemoved += requests
		if err != nil {
			report.FailedTenantIDs = append(report.FailedTenantIDs, cfg.TenantID)
			errs = append(errs, err)
		}
	}

	s.logger.Info("retention cleanup finished",
		zap.Int("tenants", report.Tenants),
		zap.Int64("tickets_removed", report.TicketsRemoved),
		zap.Int64("requests_removed", report.RequestsRemoved),
		zap.Int("failed", len(report.FailedTenantIDs)))
	return report, errors.Join(errs...)
}

// RunTenant applies one tenant's retention policy.
func (s *CleanupService) RunTenant(ctx context.Context, cfg *domain.TenantConfig) (int64, int64, error) {
	now := s.clock.Now()
	logsCutoff := now.Add(-days(cfg.CleanupLogsDays, domain.DefaultCleanupLogsDays))
	requestsCutoff := now.Add(-days(cfg.CleanupRequestsDays, domain.DefaultCleanupRequestsDays))

	tickets, err := s.tickets.DeleteInactiveBefore(ctx, cfg.TenantID, logsCutoff)
	if err != nil {
		return 0, 0, s.oplog.StorageFailure(ctx, cfg.TenantID, "ticket.cleanup", err)
	}
	requests, err := s.requests.DeleteResolvedBefore(ctx, cfg.TenantID, requestsCutoff)
	if err != nil {
		return tickets, 0, s.oplog.StorageFailure(ctx, cfg.TenantID, "close_request.cleanup", err)
	}
	if tickets > 0 || requests > 0 {
		s.logger.Info("tenant retention applied",
			zap.String("tenant_id", cfg.TenantID),
			zap.Int64("tickets_removed", tickets),
			zap.Int64("requests_removed", requests))
	}
	return tickets, requests, nil
}

func days(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * 24 * time.Hour
}
