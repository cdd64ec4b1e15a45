package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/counter"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/platform"
	"github.com/spec-kit/ticketbot/internal/repository"
)

var ticketChannelPattern = regexp.MustCompile(`^ticket-(.+)-(\d{3,})$`)

// SequenceFromChannelName extracts the ticket number from a channel name.
func SequenceFromChannelName(name string) (int, bool) {
	m := ticketChannelPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReconcileService raises each tenant's counter above every ticket number
// already in use, whether recorded in storage or visible as a live channel.
type ReconcileService struct {
	tenants  *TenantService
	tickets  repository.TicketRepository
	counter  *counter.Counter
	platform platform.Platform
	logger   *zap.Logger
}

// NewReconcileService constructs the service.
func NewReconcileService(tenants *TenantService, tickets repository.TicketRepository, c *counter.Counter, p platform.Platform, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{tenants: tenants, tickets: tickets, counter: c, platform: p, logger: logger}
}

// ReconcileAll reconciles every configured tenant and returns the resulting
// counter per tenant.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (map[string]int, error) {
	cfgs, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(cfgs))
	var errs []error
	for i := range cfgs {
		cfg := &cfgs[i]
		if !cfg.IsConfigured() {
			continue
		}
		value, err := s.ReconcileTenant(ctx, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[cfg.TenantID] = value
	}
	return out, errors.Join(errs...)
}

// ReconcileTenant reconciles one tenant.
func (s *ReconcileService) ReconcileTenant(ctx context.Context, cfg *domain.TenantConfig) (int, error) {
	observed, err := s.tickets.MaxSequence(ctx, cfg.TenantID)
	if err != nil {
		return 0, err
	}

	channels, err := s.platform.ListChannels(ctx, cfg.TenantID, cfg.CategoryID)
	if err != nil {
		s.logger.Warn("could not list ticket channels; reconciling from storage only",
			zap.String("tenant_id", cfg.TenantID), zap.Error(err))
	}
	for _, ch := range channels {
		if n, ok := SequenceFromChannelName(ch.Name); ok && n > observed {
			observed = n
		}
	}

	value, err := s.counter.Reconcile(ctx, cfg.TenantID, observed)
	if err != nil {
		return 0, err
	}
	s.logger.Info("ticket counter reconciled",
		zap.String("tenant_id", cfg.TenantID),
		zap.Int("observed_max", observed),
		zap.Int("counter", value))
	return value, nil
}
