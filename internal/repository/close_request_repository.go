package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// CloseRequestRepository persists one close request row per channel.
type CloseRequestRepository interface {
	// CreatePending upserts req as PENDING over any resolved row for the same
	// channel. It returns false without writing when a PENDING row exists.
	CreatePending(ctx context.Context, req *domain.CloseRequest) (bool, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.CloseRequest, error)
	GetPending(ctx context.Context, channelID string) (*domain.CloseRequest, error)
	// Resolve moves a PENDING row to status. An empty requestID matches any
	// pending request for the channel. It returns pgx.ErrNoRows when nothing
	// was pending.
	Resolve(ctx context.Context, channelID, requestID string, status domain.CloseRequestStatus, respondedBy string, at time.Time) (*domain.CloseRequest, error)
	SetMessageID(ctx context.Context, channelID, messageID string) error
	// MarkExcluded flags the channel's row, creating an EXCLUDED row when no
	// request is pending. A pending row keeps its status.
	MarkExcluded(ctx context.Context, tenantID, channelID, excludedBy string, at time.Time) error
	ListPendingWithTimeout(ctx context.Context) ([]domain.CloseRequest, error)
	DeleteResolvedBefore(ctx context.Context, tenantID string, before time.Time) (int64, error)
}

type closeRequestRepository struct {
	pool *pgxpool.Pool
}

// NewCloseRequestRepository instantiates repository.
func NewCloseRequestRepository(pool *pgxpool.Pool) CloseRequestRepository {
	return &closeRequestRepository{pool: pool}
}

const closeRequestColumns = `channel_id, request_id, tenant_id, requested_by, ticket_owner, reason, timeout_hours,
               status, created_at, responded_at, responded_by, message_id, excluded_from_autoclose`

func (r *closeRequestRepository) CreatePending(ctx context.Context, req *domain.CloseRequest) (bool, error) {
	const query = `
        INSERT INTO close_requests (channel_id, request_id, tenant_id, requested_by, ticket_owner, reason,
            timeout_hours, status, created_at, excluded_from_autoclose)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'PENDING',$8,$9)
        ON CONFLICT (channel_id) DO UPDATE SET
            request_id = EXCLUDED.request_id,
            tenant_id = EXCLUDED.tenant_id,
            requested_by = EXCLUDED.requested_by,
            ticket_owner = EXCLUDED.ticket_owner,
            reason = EXCLUDED.reason,
            timeout_hours = EXCLUDED.timeout_hours,
            status = 'PENDING',
            created_at = EXCLUDED.created_at,
            responded_at = NULL,
            responded_by = NULL,
            message_id = NULL,
            excluded_from_autoclose = close_requests.excluded_from_autoclose OR EXCLUDED.excluded_from_autoclose
        WHERE close_requests.status <> 'PENDING'
        RETURNING excluded_from_autoclose`
	err := r.pool.QueryRow(ctx, query,
		req.ChannelID,
		req.RequestID,
		req.TenantID,
		req.RequestedBy,
		req.TicketOwner,
		req.Reason,
		req.TimeoutHours,
		req.CreatedAt,
		req.ExcludedFromAutoClose,
	).Scan(&req.ExcludedFromAutoClose)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	req.Status = domain.CloseRequestPending
	return true, nil
}

func (r *closeRequestRepository) GetByChannel(ctx context.Context, channelID string) (*domain.CloseRequest, error) {
	query := `SELECT ` + closeRequestColumns + ` FROM close_requests WHERE channel_id=$1`
	return scanCloseRequest(r.pool.QueryRow(ctx, query, channelID))
}

func (r *closeRequestRepository) GetPending(ctx context.Context, channelID string) (*domain.CloseRequest, error) {
	query := `SELECT ` + closeRequestColumns + ` FROM close_requests WHERE channel_id=$1 AND status='PENDING'`
	return scanCloseRequest(r.pool.QueryRow(ctx, query, channelID))
}

func (r *closeRequestRepository) Resolve(ctx context.Context, channelID, requestID string, status domain.CloseRequestStatus, respondedBy string, at time.Time) (*domain.CloseRequest, error) {
	query := `
        UPDATE close_requests SET status=$1, responded_at=$2, responded_by=$3
        WHERE channel_id=$4 AND status='PENDING' AND ($5 = '' OR request_id=$5)
        RETURNING ` + closeRequestColumns
	return scanCloseRequest(r.pool.QueryRow(ctx, query, status, at, respondedBy, channelID, requestID))
}

func (r *closeRequestRepository) SetMessageID(ctx context.Context, channelID, messageID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE close_requests SET message_id=$1 WHERE channel_id=$2 AND status='PENDING'`, messageID, channelID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *closeRequestRepository) MarkExcluded(ctx context.Context, tenantID, channelID, excludedBy string, at time.Time) error {
	const query = `
        INSERT INTO close_requests (channel_id, request_id, tenant_id, requested_by, ticket_owner, reason,
            status, created_at, excluded_from_autoclose)
        VALUES ($1,'',$2,$3,'SYSTEM','Excluded from auto-close','EXCLUDED',$4,TRUE)
        ON CONFLICT (channel_id) DO UPDATE SET
            excluded_from_autoclose = TRUE,
            status = CASE WHEN close_requests.status = 'PENDING' THEN close_requests.status ELSE 'EXCLUDED' END`
	_, err := r.pool.Exec(ctx, query, channelID, tenantID, excludedBy, at)
	return err
}

func (r *closeRequestRepository) ListPendingWithTimeout(ctx context.Context) ([]domain.CloseRequest, error) {
	query := `SELECT ` + closeRequestColumns + ` FROM close_requests
        WHERE status='PENDING' AND timeout_hours IS NOT NULL ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CloseRequest
	for rows.Next() {
		req, err := scanCloseRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *closeRequestRepository) DeleteResolvedBefore(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	const query = `
        DELETE FROM close_requests
        WHERE tenant_id=$1 AND status NOT IN ('PENDING','EXCLUDED') AND created_at < $2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanCloseRequest(row pgx.Row) (*domain.CloseRequest, error) {
	var req domain.CloseRequest
	if err := row.Scan(
		&req.ChannelID,
		&req.RequestID,
		&req.TenantID,
		&req.RequestedBy,
		&req.TicketOwner,
		&req.Reason,
		&req.TimeoutHours,
		&req.Status,
		&req.CreatedAt,
		&req.RespondedAt,
		&req.RespondedBy,
		&req.MessageID,
		&req.ExcludedFromAutoClose,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
