package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/auth"
	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/repository"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// ConfigCache is a shared cache for tenant configuration. Redis implements
// it in production.
type ConfigCache interface {
	GetTenantConfig(ctx context.Context, tenantID string) (*domain.TenantConfig, bool, error)
	SetTenantConfig(ctx context.Context, cfg *domain.TenantConfig) error
	DeleteTenantConfig(ctx context.Context, tenantID string) error
}

// TenantService owns tenant configuration: a process-local map in front of
// an optional shared cache in front of Postgres. Reads load on miss; Save
// writes Postgres first and then refreshes both caches.
type TenantService struct {
	repo   repository.TenantConfigRepository
	cache  ConfigCache
	policy *auth.Policy
	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	local map[string]tenantEntry
}

type tenantEntry struct {
	cfg      *domain.TenantConfig
	loadedAt time.Time
}

// TenantDependencies bundles collaborators for the tenant service.
type TenantDependencies struct {
	Repo   repository.TenantConfigRepository
	Cache  ConfigCache
	Policy *auth.Policy
	Clock  clock.Clock
	TTL    time.Duration
	Logger *zap.Logger
}

// NewTenantService constructs the service. A nil Cache keeps configuration
// process-local.
func NewTenantService(deps TenantDependencies) *TenantService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Policy == nil {
		deps.Policy = auth.NewPolicy()
	}
	return &TenantService{
		repo:   deps.Repo,
		cache:  deps.Cache,
		policy: deps.Policy,
		clock:  deps.Clock,
		ttl:    deps.TTL,
		logger: deps.Logger,
		local:  make(map[string]tenantEntry),
	}
}

// Get returns the tenant's configuration. A tenant that never saved one gets
// an unconfigured default.
func (s *TenantService) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	if cfg, ok := s.Cached(tenantID); ok {
		return cfg, nil
	}

	if s.cache != nil {
		cfg, ok, err := s.cache.GetTenantConfig(ctx, tenantID)
		if err != nil {
			s.logger.Warn("tenant config cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		} else if ok {
			s.remember(cfg)
			return cfg.Clone(), nil
		}
	}

	cfg, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewTenantConfig(tenantID), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageFailure("tenant_config.get", err)
	}
	s.remember(cfg)
	s.writeCache(ctx, cfg)
	return cfg.Clone(), nil
}

// Cached returns the process-local copy without touching storage.
func (s *TenantService) Cached(tenantID string) (*domain.TenantConfig, bool) {
	s.mu.RLock()
	entry, ok := s.local[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.clock.Now().Sub(entry.loadedAt) > s.ttl {
		return nil, false
	}
	return entry.cfg.Clone(), true
}

// Save stores the configuration on behalf of a tenant administrator.
func (s *TenantService) Save(ctx context.Context, actor domain.Actor, cfg *domain.TenantConfig) (*domain.TenantConfig, error) {
	if !s.policy.HasAdmin(actor) {
		return nil, apperrors.NewPermissionDenied("only server administrators can change ticket settings")
	}
	if cfg.TenantID != actor.TenantID {
		return nil, apperrors.NewPermissionDenied("cannot change another server's settings")
	}
	if cfg.CleanupLogsDays <= 0 || cfg.CleanupRequestsDays <= 0 {
		return nil, apperrors.NewValidationError("retention days must be positive", map[string]any{
			"cleanup_logs_days":     cfg.CleanupLogsDays,
			"cleanup_requests_days": cfg.CleanupRequestsDays,
		})
	}

	stored := cfg.Clone()
	if err := s.repo.Save(ctx, stored); err != nil {
		return nil, apperrors.NewStorageFailure("tenant_config.save", err)
	}
	s.remember(stored)
	s.writeCache(ctx, stored)
	s.logger.Info("tenant config saved",
		zap.String("tenant_id", stored.TenantID),
		zap.String("actor_id", actor.UserID),
		zap.Bool("configured", stored.IsConfigured()))
	return stored.Clone(), nil
}

// List returns every stored configuration, bypassing the caches.
func (s *TenantService) List(ctx context.Context) ([]domain.TenantConfig, error) {
	cfgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageFailure("tenant_config.list", err)
	}
	return cfgs, nil
}

// Invalidate drops the tenant from both caches.
func (s *TenantService) Invalidate(ctx context.Context, tenantID string) {
	s.mu.Lock()
	delete(s.local, tenantID)
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.DeleteTenantConfig(ctx, tenantID); err != nil {
			s.logger.Warn("tenant config cache eviction failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

func (s *TenantService) remember(cfg *domain.TenantConfig) {
	s.mu.Lock()
	s.local[cfg.TenantID] = tenantEntry{cfg: cfg.Clone(), loadedAt: s.clock.Now()}
	s.mu.Unlock()
}

func (s *TenantService) writeCache(ctx context.Context, cfg *domain.TenantConfig) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetTenantConfig(ctx, cfg); err != nil {
		s.logger.Warn("tenant config cache write failed", zap.String("tenant_id", cfg.TenantID), zap.Error(err))
	}
}
