package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
	TicketStatusDeleted    TicketStatus = "DELETED"
	TicketStatusAutoClosed TicketStatus = "AUTO_CLOSED"
)

// TicketType is the panel button a ticket was opened from.
type TicketType string

const (
	TicketTypeSupport TicketType = "SUPPORT"
	TicketTypeReport  TicketType = "REPORT"
	TicketTypeAppeal  TicketType = "APPEAL"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeSupport, TicketTypeReport, TicketTypeAppeal:
		return true
	}
	return false
}

// Ticket is a support interaction backed by a dedicated channel.
type Ticket struct {
	ChannelID      string
	TenantID       string
	OwnerID        string
	Type           TicketType
	SequenceNumber int
	ChannelName    string
	Status         TicketStatus
	CreatedAt      time.Time
	ClosedAt       *time.Time
	ClosedBy       *string
	CloseReason    *string
}

// Active reports whether the ticket counts against the one-open-ticket limit.
func (t *Ticket) Active() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusReopened
}

// TicketStats counts a tenant's tickets.
type TicketStats struct {
	Total    int
	ByStatus map[TicketStatus]int
	ByType   map[TicketType]int
}

// NewTicketStats returns empty counters.
func NewTicketStats() *TicketStats {
	return &TicketStats{ByStatus: map[TicketStatus]int{}, ByType: map[TicketType]int{}}
}

// Add counts n tickets of the given status and type.
func (s *TicketStats) Add(status TicketStatus, ticketType TicketType, n int) {
	s.Total += n
	s.ByStatus[status] += n
	s.ByType[ticketType] += n
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusClosed, TicketStatusAutoClosed, TicketStatusDeleted},
	TicketStatusReopened:   {TicketStatusOpen, TicketStatusClosed, TicketStatusDeleted},
	TicketStatusClosed:     {TicketStatusReopened, TicketStatusDeleted},
	TicketStatusAutoClosed: {TicketStatusDeleted},
	TicketStatusDeleted:    {},
}

// CanTransition reports whether a ticket may move from current to next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
