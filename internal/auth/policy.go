package auth

import "github.com/spec-kit/ticketbot/internal/domain"

// Policy answers every authorization question the services ask. Services
// never look at role lists themselves.
type Policy struct{}

// NewPolicy returns the policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// HasAdmin reports whether the actor may change tenant configuration.
func (p *Policy) HasAdmin(actor domain.Actor) bool {
	return actor.Administrator || actor.TenantOwner
}

// HasStaff reports whether the actor is support staff for the tenant: an
// administrator, the tenant owner, or a holder of one of the support roles.
func (p *Policy) HasStaff(actor domain.Actor, cfg *domain.TenantConfig) bool {
	if p.HasAdmin(actor) {
		return true
	}
	if cfg == nil || cfg.TenantID != actor.TenantID {
		return false
	}
	for _, roleID := range cfg.SupportRoleIDs {
		if actor.HasRole(roleID) {
			return true
		}
	}
	return false
}

// IsTicketOwner reports whether the actor opened the ticket.
func (p *Policy) IsTicketOwner(ticket *domain.Ticket, actor domain.Actor) bool {
	if ticket == nil || ticket.OwnerID == "" {
		return false
	}
	return ticket.OwnerID == actor.UserID && ticket.TenantID == actor.TenantID
}
