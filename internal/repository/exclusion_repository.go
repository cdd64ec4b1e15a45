package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// ExclusionRepository tracks channels exempt from auto-close.
type ExclusionRepository interface {
	// Exclude is idempotent; it reports whether a new row was written.
	Exclude(ctx context.Context, exclusion *domain.AutoCloseExclusion) (bool, error)
	IsExcluded(ctx context.Context, channelID string) (bool, error)
}

type exclusionRepository struct {
	pool *pgxpool.Pool
}

// NewExclusionRepository instantiates repository.
func NewExclusionRepository(pool *pgxpool.Pool) ExclusionRepository {
	return &exclusionRepository{pool: pool}
}

func (r *exclusionRepository) Exclude(ctx context.Context, exclusion *domain.AutoCloseExclusion) (bool, error) {
	const query = `
        INSERT INTO autoclose_exclusions (channel_id, excluded_by, excluded_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (channel_id) DO NOTHING
        RETURNING excluded_at`
	err := r.pool.QueryRow(ctx, query, exclusion.ChannelID, exclusion.ExcludedBy, exclusion.ExcludedAt).
		Scan(&exclusion.ExcludedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *exclusionRepository) IsExcluded(ctx context.Context, channelID string) (bool, error) {
	var excluded bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM autoclose_exclusions WHERE channel_id=$1)`, channelID).Scan(&excluded)
	return excluded, err
}
