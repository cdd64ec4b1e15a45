package events

import (
	"time"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketClosed         EventType = "ticket_closed"
	EventTicketReopened       EventType = "ticket_reopened"
	EventTicketDeleted        EventType = "ticket_deleted"
	EventTicketAutoClosed     EventType = "ticket_auto_closed"
	EventCloseRequested       EventType = "close_requested"
	EventCloseRequestResolved EventType = "close_request_resolved"
	EventTicketAssigned       EventType = "ticket_assigned"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, UserName: a.UserName}
}

// SystemActor marks events raised by timers.
var SystemActor = Actor{UserID: domain.SystemActorID}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	ChannelID string      `json:"channel_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID        string            `json:"owner_id"`
	Type           domain.TicketType `json:"type"`
	SequenceNumber int               `json:"sequence_number"`
	ChannelName    string            `json:"channel_name"`
	SupportRoleIDs []string          `json:"support_role_ids"`
}

// TicketStatusPayload is carried by closed, reopened, deleted and
// auto-closed events.
type TicketStatusPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
	// RemovalIn is set when the channel is scheduled for removal.
	RemovalIn time.Duration `json:"removal_in,omitempty"`
}

// CloseRequestedPayload payload.
type CloseRequestedPayload struct {
	RequestID      string `json:"request_id"`
	TicketOwner    string `json:"ticket_owner"`
	Reason         string `json:"reason"`
	TimeoutHours   *int   `json:"timeout_hours,omitempty"`
	TimeoutDropped bool   `json:"timeout_dropped,omitempty"`
}

// CloseRequestResolvedPayload payload.
type CloseRequestResolvedPayload struct {
	RequestID string                    `json:"request_id"`
	Status    domain.CloseRequestStatus `json:"status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty"`
}
