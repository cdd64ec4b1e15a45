package domain

import "time"

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         int64
	ChannelID  string
	TenantID   string
	ActorID    string
	FromStatus string
	ToStatus   string
	Reason     string
	CreatedAt  time.Time
}

// History entries for close requests use these pseudo statuses.
const (
	HistoryCloseRequested = "CLOSE_REQUESTED"
	HistoryCloseDenied    = "CLOSE_DENIED"
	HistoryCloseConfirmed = "CLOSE_CONFIRMED"
	HistoryAutoClosed     = "CLOSE_TIMED_OUT"
	HistoryCloseWithdrawn = "CLOSE_WITHDRAWN"
)

// HistoryAssigned records a staff assignment.
const HistoryAssigned = "ASSIGNED"
