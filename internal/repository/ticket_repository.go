package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// TicketFilter narrows tenant ticket listings.
type TicketFilter struct {
	TenantID string
	OwnerID  *string
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketRepository encapsulates the ticket log.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the ticket's status fields only if the stored status is
	// still expected. It returns pgx.ErrNoRows otherwise.
	Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	FindActiveByOwner(ctx context.Context, tenantID, ownerID string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	MaxSequence(ctx context.Context, tenantID string) (int, error)
	DeleteInactiveBefore(ctx context.Context, tenantID string, before time.Time) (int64, error)
	Stats(ctx context.Context, tenantID string) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `channel_id, tenant_id, owner_id, type, sequence_number, channel_name,
               status, created_at, closed_at, closed_by, close_reason`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO ticket_logs (channel_id, tenant_id, owner_id, type, sequence_number, channel_name, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ChannelID,
		ticket.TenantID,
		ticket.OwnerID,
		ticket.Type,
		ticket.SequenceNumber,
		ticket.ChannelName,
		ticket.Status,
	).Scan(&ticket.CreatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE ticket_logs SET status=$1, closed_at=$2, closed_by=$3, close_reason=$4
        WHERE channel_id=$5 AND status=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.ClosedAt,
		ticket.ClosedBy,
		ticket.CloseReason,
		ticket.ChannelID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_logs WHERE channel_id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, channelID))
}

func (r *ticketRepository) FindActiveByOwner(ctx context.Context, tenantID, ownerID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_logs
        WHERE tenant_id=$1 AND owner_id=$2 AND status IN ('OPEN','REOPENED')
        LIMIT 1`
	return scanTicket(r.pool.QueryRow(ctx, query, tenantID, ownerID))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"tenant_id=$1"}
	args := []any{filter.TenantID}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM ticket_logs WHERE %s ORDER BY sequence_number DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MaxSequence(ctx context.Context, tenantID string) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM ticket_logs WHERE tenant_id=$1`, tenantID).Scan(&max)
	return max, err
}

func (r *ticketRepository) DeleteInactiveBefore(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	const query = `
        DELETE FROM ticket_logs
        WHERE tenant_id=$1 AND status IN ('CLOSED','DELETED','AUTO_CLOSED') AND closed_at < $2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) Stats(ctx context.Context, tenantID string) (*domain.TicketStats, error) {
	const query = `
        SELECT status, type, COUNT(*) FROM ticket_logs
        WHERE tenant_id=$1
        GROUP BY status, type`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := domain.NewTicketStats()
	for rows.Next() {
		var (
			status     domain.TicketStatus
			ticketType domain.TicketType
			count      int
		)
		if err := rows.Scan(&status, &ticketType, &count); err != nil {
			return nil, err
		}
		stats.Add(status, ticketType, count)
	}
	return stats, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ChannelID,
		&ticket.TenantID,
		&ticket.OwnerID,
		&ticket.Type,
		&ticket.SequenceNumber,
		&ticket.ChannelName,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.CloseReason,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
