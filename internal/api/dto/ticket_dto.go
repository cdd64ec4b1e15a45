package dto

import (
	"time"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Type domain.TicketType `json:"type"`
}

// CloseTicketRequest payload. An empty reason falls back to a default.
type CloseTicketRequest struct {
	Reason string `json:"reason"`
}

// CloseRequestRequest payload for a staff close request.
type CloseRequestRequest struct {
	Reason       string `json:"reason"`
	TimeoutHours *int   `json:"timeout_hours"`
}

// AttachMessageRequest links the prompt message to the pending request.
type AttachMessageRequest struct {
	MessageID string `json:"message_id"`
}

// AssignTicketRequest names the staff member to assign. The gateway resolves
// the assignee's roles the same way it does for the acting member.
type AssignTicketRequest struct {
	AssigneeID      string   `json:"assignee_id"`
	AssigneeName    string   `json:"assignee_name"`
	AssigneeRoleIDs []string `json:"assignee_role_ids"`
	Administrator   bool     `json:"administrator"`
}

// TicketListQuery captures query filters for staff listings.
type TicketListQuery struct {
	OwnerID  *string
	Statuses []domain.TicketStatus
	Page     int
	PageSize int
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ChannelID      string              `json:"channel_id"`
	TenantID       string              `json:"tenant_id"`
	OwnerID        string              `json:"owner_id"`
	Type           domain.TicketType   `json:"type"`
	SequenceNumber int                 `json:"sequence_number"`
	ChannelName    string              `json:"channel_name"`
	Status         domain.TicketStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	ClosedAt       *time.Time          `json:"closed_at"`
	ClosedBy       *string             `json:"closed_by"`
	CloseReason    *string             `json:"close_reason"`
}

// TicketStatsResponse counts a tenant's tickets.
type TicketStatsResponse struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"by_status"`
	ByType   map[domain.TicketType]int   `json:"by_type"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CloseRequestResponse represents a close request.
type CloseRequestResponse struct {
	RequestID             string                    `json:"request_id"`
	ChannelID             string                    `json:"channel_id"`
	RequestedBy           string                    `json:"requested_by"`
	TicketOwner           string                    `json:"ticket_owner"`
	Reason                string                    `json:"reason"`
	TimeoutHours          *int                      `json:"timeout_hours"`
	DeadlineAt            *time.Time                `json:"deadline_at,omitempty"`
	Status                domain.CloseRequestStatus `json:"status"`
	CreatedAt             time.Time                 `json:"created_at"`
	RespondedAt           *time.Time                `json:"responded_at,omitempty"`
	RespondedBy           *string                   `json:"responded_by,omitempty"`
	MessageID             *string                   `json:"message_id,omitempty"`
	ExcludedFromAutoClose bool                      `json:"excluded_from_auto_close"`
	TimeoutDropped        bool                      `json:"timeout_dropped,omitempty"`
}

// TranscriptResponse references a rendered transcript.
type TranscriptResponse struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	Location     string    `json:"location"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExclusionResponse reports an auto-close exclusion.
type ExclusionResponse struct {
	ChannelID string `json:"channel_id"`
	Created   bool   `json:"created"`
}
