package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/platform"
)

// MessageRecorder stores the id of the prompt posted for a close request.
type MessageRecorder interface {
	recordPromptMessage(ctx context.Context, channelID, messageID string) error
}

// NotificationService posts lifecycle notices into ticket channels in
// response to domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	platform   platform.Platform
	recorder   MessageRecorder
	logger     *zap.Logger
}

// NewNotificationService creates the service. recorder may be nil.
func NewNotificationService(dispatcher events.Dispatcher, p platform.Platform, recorder MessageRecorder, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		platform:   p,
		recorder:   recorder,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketAutoClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketReopened)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
	n.dispatcher.Subscribe(events.EventCloseRequested, n.handleCloseRequested)
	n.dispatcher.Subscribe(events.EventCloseRequestResolved, n.handleCloseRequestResolved)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	kind := strings.ToLower(string(payload.Type))
	welcome := fmt.Sprintf("Hello <@%s>!\n\nThank you for creating a **%s** ticket (#%03d). "+
		"Please describe your issue in detail and our staff will assist you shortly.",
		payload.OwnerID, kind, payload.SequenceNumber)
	if _, err := n.post(ctx, event, welcome); err != nil {
		return err
	}
	if len(payload.SupportRoleIDs) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(payload.SupportRoleIDs))
	for _, roleID := range payload.SupportRoleIDs {
		mentions = append(mentions, "<@&"+roleID+">")
	}
	_, err := n.post(ctx, event, fmt.Sprintf("%s - New %s ticket created!", strings.Join(mentions, " "), kind))
	return err
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusPayload)
	var msg string
	if event.Type == events.EventTicketAutoClosed {
		msg = fmt.Sprintf("This ticket was closed automatically.\n\n**Reason:** %s", payload.Reason)
	} else {
		msg = fmt.Sprintf("<@%s> has closed this ticket.\n\n**Reason:** %s", event.Actor.UserID, payload.Reason)
	}
	_, err := n.post(ctx, event, msg)
	return err
}

func (n *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	_, err := n.post(ctx, event, fmt.Sprintf("This ticket has been re-opened by <@%s>.", event.Actor.UserID))
	return err
}

func (n *NotificationService) handleTicketDeleted(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusPayload)
	_, err := n.post(ctx, event, fmt.Sprintf("This ticket will be permanently deleted in **%s**.", humanDuration(payload.RemovalIn)))
	return err
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	msg := fmt.Sprintf("This ticket has been assigned to <@%s>.\n\nThey now have explicit access to this channel. Assigned by <@%s>.",
		payload.AssigneeID, event.Actor.UserID)
	_, err := n.post(ctx, event, msg)
	return err
}

func (n *NotificationService) handleCloseRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CloseRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<@%s>, <@%s> has requested to close this ticket.\n\n**Reason:** %s\n\n",
		payload.TicketOwner, event.Actor.UserID, payload.Reason)
	b.WriteString("Please confirm or deny this request.")
	if payload.TimeoutHours != nil {
		fmt.Fprintf(&b, "\nThe ticket closes automatically if there is no response within **%d hour(s)**.", *payload.TimeoutHours)
	}
	if payload.TimeoutDropped {
		b.WriteString("\nThis ticket is excluded from auto-close, so no timeout applies.")
	}

	messageID, err := n.post(ctx, event, b.String())
	if err != nil || n.recorder == nil || messageID == "" {
		return err
	}
	return n.recorder.recordPromptMessage(ctx, event.ChannelID, messageID)
}

func (n *NotificationService) handleCloseRequestResolved(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.CloseRequestResolvedPayload)
	switch payload.Status {
	case domain.CloseRequestDenied:
		_, err := n.post(ctx, event, fmt.Sprintf("<@%s> denied the close request. The ticket stays open.", event.Actor.UserID))
		return err
	case domain.CloseRequestAutoClosed:
		_, err := n.post(ctx, event, "The close request timed out without a response.")
		return err
	}
	return nil
}

func (n *NotificationService) post(ctx context.Context, event events.Event, content string) (string, error) {
	id, err := n.platform.PostMessage(ctx, event.ChannelID, content)
	if err != nil {
		n.logger.Warn("notification not delivered",
			zap.String("event_type", string(event.Type)),
			zap.String("channel_id", event.ChannelID),
			zap.Error(err))
		return "", err
	}
	return id, nil
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	return d.Round(time.Second).String()
}
