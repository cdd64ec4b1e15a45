package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/platform"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// Assign grants a staff member explicit access to a ticket channel. Both the
// actor and the assignee must be staff of the ticket's tenant. The assignment
// is recorded in the ticket history; the ticket row itself does not change.
func (s *TicketService) Assign(ctx context.Context, channelID string, actor, assignee domain.Actor) (*domain.Ticket, error) {
	if strings.TrimSpace(assignee.UserID) == "" {
		return nil, apperrors.NewValidationError("assignee is required", nil)
	}
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can assign tickets")
	}
	assignee.TenantID = ticket.TenantID
	if !s.policy.HasStaff(assignee, cfg) {
		return nil, apperrors.NewValidationError("assignee must be a staff member", map[string]any{"assignee_id": assignee.UserID})
	}

	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	ticket, err = s.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusDeleted {
		return nil, apperrors.NewValidationError("deleted tickets cannot be assigned", map[string]any{"channel_id": channelID})
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, assignee.UserID, platform.AccessStaff); err != nil {
		return nil, s.oplog.PlatformFailure(ctx, ticket.TenantID, "channel.member_access", err,
			zap.String("channel_id", channelID), zap.String("assignee_id", assignee.UserID))
	}

	s.recordHistory(ctx, ticket, actor.UserID, "", domain.HistoryAssigned, "Assigned to "+assignee.UserID)
	s.logger.Info("ticket assigned",
		zap.String("channel_id", channelID),
		zap.String("actor_id", actor.UserID),
		zap.String("assignee_id", assignee.UserID))
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketAssigned,
		TenantID:  ticket.TenantID,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload:   events.TicketAssignedPayload{AssigneeID: assignee.UserID, AssigneeName: assignee.UserName},
	})
	return ticket, nil
}
