package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/repository/memory"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

type mapCache struct {
	mu   sync.Mutex
	cfgs map[string]*domain.TenantConfig
}

func newMapCache() *mapCache {
	return &mapCache{cfgs: map[string]*domain.TenantConfig{}}
}

func (c *mapCache) GetTenantConfig(_ context.Context, tenantID string) (*domain.TenantConfig, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.cfgs[tenantID]
	return cfg.Clone(), ok, nil
}

func (c *mapCache) SetTenantConfig(_ context.Context, cfg *domain.TenantConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfgs[cfg.TenantID] = cfg.Clone()
	return nil
}

func (c *mapCache) DeleteTenantConfig(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cfgs, tenantID)
	return nil
}

func configuredTenant(tenantID string) *domain.TenantConfig {
	cfg := domain.NewTenantConfig(tenantID)
	cfg.CategoryID = "cat"
	cfg.PanelChannelID = "panel"
	cfg.TranscriptChannelID = "transcripts"
	cfg.SupportRoleIDs = []string{"support"}
	return cfg
}

func TestTenantGetUnknownReturnsDefaults(t *testing.T) {
	svc := NewTenantService(TenantDependencies{Repo: memory.New().Tenants})

	cfg, err := svc.Get(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.IsConfigured() {
		t.Fatalf("unknown tenant should not be configured")
	}
	if cfg.CleanupLogsDays != domain.DefaultCleanupLogsDays || cfg.CleanupRequestsDays != domain.DefaultCleanupRequestsDays {
		t.Fatalf("unexpected retention defaults %+v", cfg)
	}
}

func TestTenantSaveRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewTenantService(TenantDependencies{Repo: memory.New().Tenants})
	cfg := configuredTenant("g1")

	_, err := svc.Save(ctx, domain.Actor{TenantID: "g1", UserID: "u", RoleIDs: []string{"support"}}, cfg)
	expectCode(t, err, apperrors.CodePermissionDenied)

	_, err = svc.Save(ctx, domain.Actor{TenantID: "g2", UserID: "u", Administrator: true}, cfg)
	expectCode(t, err, apperrors.CodePermissionDenied)

	bad := configuredTenant("g1")
	bad.CleanupLogsDays = 0
	_, err = svc.Save(ctx, domain.Actor{TenantID: "g1", UserID: "u", Administrator: true}, bad)
	expectCode(t, err, apperrors.CodeValidation)

	saved, err := svc.Save(ctx, domain.Actor{TenantID: "g1", UserID: "owner", TenantOwner: true}, cfg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved.IsConfigured() {
		t.Fatalf("saved config should be configured")
	}
}

func TestTenantGetUsesSharedCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := newMapCache()
	writer := NewTenantService(TenantDependencies{Repo: store.Tenants, Cache: cache})
	admin := domain.Actor{TenantID: "g1", UserID: "a", Administrator: true}
	if _, err := writer.Save(ctx, admin, configuredTenant("g1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	store.Tenants.Fail("get", errors.New("db down"))
	reader := NewTenantService(TenantDependencies{Repo: store.Tenants, Cache: cache})
	cfg, err := reader.Get(ctx, "g1")
	if err != nil || !cfg.IsConfigured() {
		t.Fatalf("expected cached config, got %+v, %v", cfg, err)
	}

	reader.Invalidate(ctx, "g1")
	_, err = reader.Get(ctx, "g1")
	expectCode(t, err, apperrors.CodeStorageFailure)
}

func TestTenantLocalCacheExpires(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clk := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewTenantService(TenantDependencies{Repo: store.Tenants, Clock: clk, TTL: time.Minute})

	if err := store.Tenants.Save(ctx, configuredTenant("g1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Get(ctx, "g1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	changed := configuredTenant("g1")
	changed.ErrorLogChannelID = "errors"
	if err := store.Tenants.Save(ctx, changed); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg, _ := svc.Get(ctx, "g1")
	if cfg.ErrorLogChannelID != "" {
		t.Fatalf("local cache should still serve the old value")
	}

	clk.Advance(2 * time.Minute)
	if _, ok := svc.Cached("g1"); ok {
		t.Fatalf("expired entry should not be served")
	}
	cfg, _ = svc.Get(ctx, "g1")
	if cfg.ErrorLogChannelID != "errors" {
		t.Fatalf("expected refreshed config, got %+v", cfg)
	}
}

func TestTenantGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc := NewTenantService(TenantDependencies{Repo: memory.New().Tenants})
	admin := domain.Actor{TenantID: "g1", UserID: "a", Administrator: true}
	if _, err := svc.Save(ctx, admin, configuredTenant("g1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	cfg, _ := svc.Get(ctx, "g1")
	cfg.SupportRoleIDs[0] = "mutated"
	again, _ := svc.Get(ctx, "g1")
	if again.SupportRoleIDs[0] != "support" {
		t.Fatalf("callers must not share cached state")
	}
}
