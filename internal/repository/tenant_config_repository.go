package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// TenantConfigRepository persists per-tenant configuration and the ticket counter.
type TenantConfigRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	List(ctx context.Context) ([]domain.TenantConfig, error)
	Save(ctx context.Context, cfg *domain.TenantConfig) error
	GetTicketCounter(ctx context.Context, tenantID string) (int, error)
	// StoreTicketCounter never lowers the stored value.
	StoreTicketCounter(ctx context.Context, tenantID string, value int) error
}

type tenantConfigRepository struct {
	pool *pgxpool.Pool
}

// NewTenantConfigRepository instantiates repository.
func NewTenantConfigRepository(pool *pgxpool.Pool) TenantConfigRepository {
	return &tenantConfigRepository{pool: pool}
}

const tenantConfigColumns = `tenant_id, category_id, panel_channel_id, transcript_channel_id, error_log_channel_id,
               ticket_counter, cleanup_logs_days, cleanup_requests_days, updated_at`

func (r *tenantConfigRepository) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	query := `SELECT ` + tenantConfigColumns + ` FROM tenant_config WHERE tenant_id=$1`
	cfg, err := scanTenantConfig(r.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, err
	}
	roles, err := r.supportRoles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg.SupportRoleIDs = roles
	return cfg, nil
}

func (r *tenantConfigRepository) List(ctx context.Context) ([]domain.TenantConfig, error) {
	query := `SELECT ` + tenantConfigColumns + ` FROM tenant_config ORDER BY tenant_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TenantConfig
	for rows.Next() {
		cfg, err := scanTenantConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		roles, err := r.supportRoles(ctx, result[i].TenantID)
		if err != nil {
			return nil, err
		}
		result[i].SupportRoleIDs = roles
	}
	return result, nil
}

func (r *tenantConfigRepository) Save(ctx context.Context, cfg *domain.TenantConfig) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `
        INSERT INTO tenant_config (tenant_id, category_id, panel_channel_id, transcript_channel_id, error_log_channel_id,
            ticket_counter, cleanup_logs_days, cleanup_requests_days)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (tenant_id) DO UPDATE SET
            category_id = EXCLUDED.category_id,
            panel_channel_id = EXCLUDED.panel_channel_id,
            transcript_channel_id = EXCLUDED.transcript_channel_id,
            error_log_channel_id = EXCLUDED.error_log_channel_id,
            ticket_counter = GREATEST(tenant_config.ticket_counter, EXCLUDED.ticket_counter),
            cleanup_logs_days = EXCLUDED.cleanup_logs_days,
            cleanup_requests_days = EXCLUDED.cleanup_requests_days,
            updated_at = NOW()
        RETURNING ticket_counter, updated_at`
		if err := tx.QueryRow(ctx, upsert,
			cfg.TenantID,
			cfg.CategoryID,
			cfg.PanelChannelID,
			cfg.TranscriptChannelID,
			cfg.ErrorLogChannelID,
			cfg.TicketCounter,
			cfg.CleanupLogsDays,
			cfg.CleanupRequestsDays,
		).Scan(&cfg.TicketCounter, &cfg.UpdatedAt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM support_roles WHERE tenant_id=$1`, cfg.TenantID); err != nil {
			return err
		}
		for _, roleID := range cfg.SupportRoleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO support_roles (tenant_id, role_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
				cfg.TenantID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *tenantConfigRepository) GetTicketCounter(ctx context.Context, tenantID string) (int, error) {
	var counter int
	err := r.pool.QueryRow(ctx, `SELECT ticket_counter FROM tenant_config WHERE tenant_id=$1`, tenantID).Scan(&counter)
	return counter, err
}

func (r *tenantConfigRepository) StoreTicketCounter(ctx context.Context, tenantID string, value int) error {
	const query = `
        INSERT INTO tenant_config (tenant_id, ticket_counter) VALUES ($1,$2)
        ON CONFLICT (tenant_id) DO UPDATE SET
            ticket_counter = GREATEST(tenant_config.ticket_counter, EXCLUDED.ticket_counter),
            updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, tenantID, value)
	return err
}

func (r *tenantConfigRepository) supportRoles(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM support_roles WHERE tenant_id=$1 ORDER BY role_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		roles = append(roles, roleID)
	}
	return roles, rows.Err()
}

func scanTenantConfig(row pgx.Row) (*domain.TenantConfig, error) {
	var cfg domain.TenantConfig
	var updatedAt time.Time
	if err := row.Scan(
		&cfg.TenantID,
		&cfg.CategoryID,
		&cfg.PanelChannelID,
		&cfg.TranscriptChannelID,
		&cfg.ErrorLogChannelID,
		&cfg.TicketCounter,
		&cfg.CleanupLogsDays,
		&cfg.CleanupRequestsDays,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	cfg.UpdatedAt = updatedAt
	return &cfg, nil
}
