package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/config"
	"github.com/spec-kit/ticketbot/internal/domain"
)

const tenantConfigKeyPrefix = "ticketbot:tenant_config:"

// Redis wraps the go-redis client. It also serves as the shared tenant
// configuration cache between replicas.
type Redis struct {
	Client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to Redis using the provided configuration. It returns
// nil when no address is configured.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; tenant config cache is process-local")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client, ttl: cfg.CacheTTL, logger: logger}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// GetTenantConfig returns the cached configuration. A miss is (nil, false, nil).
func (r *Redis) GetTenantConfig(ctx context.Context, tenantID string) (*domain.TenantConfig, bool, error) {
	raw, err := r.Client.Get(ctx, tenantConfigKeyPrefix+tenantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cfg domain.TenantConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		r.logger.Warn("dropping undecodable tenant config cache entry",
			zap.String("tenant_id", tenantID), zap.Error(err))
		_ = r.Client.Del(ctx, tenantConfigKeyPrefix+tenantID).Err()
		return nil, false, nil
	}
	return &cfg, true, nil
}

// SetTenantConfig stores cfg with the configured TTL.
func (r *Redis) SetTenantConfig(ctx context.Context, cfg *domain.TenantConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, tenantConfigKeyPrefix+cfg.TenantID, raw, r.ttl).Err()
}

// DeleteTenantConfig evicts the cached configuration.
func (r *Redis) DeleteTenantConfig(ctx context.Context, tenantID string) error {
	return r.Client.Del(ctx, tenantConfigKeyPrefix+tenantID).Err()
}
