package domain

import "time"

// CloseRequestStatus enumerates the states of a close request.
type CloseRequestStatus string

const (
	CloseRequestPending    CloseRequestStatus = "PENDING"
	CloseRequestConfirmed  CloseRequestStatus = "CONFIRMED"
	CloseRequestDenied     CloseRequestStatus = "DENIED"
	CloseRequestAutoClosed CloseRequestStatus = "AUTO_CLOSED"
	CloseRequestExcluded   CloseRequestStatus = "EXCLUDED"
	// CloseRequestWithdrawn marks a request dropped because the ticket was
	// closed, deleted or reopened by other means.
	CloseRequestWithdrawn CloseRequestStatus = "WITHDRAWN"
)

// CloseRequest is a staff proposal to close a ticket awaiting the owner.
type CloseRequest struct {
	ChannelID             string
	RequestID             string
	TenantID              string
	RequestedBy           string
	TicketOwner           string
	Reason                string
	TimeoutHours          *int
	Status                CloseRequestStatus
	CreatedAt             time.Time
	RespondedAt           *time.Time
	RespondedBy           *string
	MessageID             *string
	ExcludedFromAutoClose bool
}

// Deadline returns when an unanswered request auto-closes, if it has a timeout.
func (r *CloseRequest) Deadline() (time.Time, bool) {
	if r.TimeoutHours == nil {
		return time.Time{}, false
	}
	return r.CreatedAt.Add(time.Duration(*r.TimeoutHours) * time.Hour), true
}

// AutoCloseExclusion exempts a channel from timeout enforcement.
type AutoCloseExclusion struct {
	ChannelID  string
	ExcludedBy string
	ExcludedAt time.Time
}
