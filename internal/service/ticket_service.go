package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/auth"
	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/config"
	"github.com/spec-kit/ticketbot/internal/counter"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/keylock"
	"github.com/spec-kit/ticketbot/internal/observability"
	"github.com/spec-kit/ticketbot/internal/platform"
	"github.com/spec-kit/ticketbot/internal/repository"
	"github.com/spec-kit/ticketbot/internal/scheduler"
	"github.com/spec-kit/ticketbot/internal/transcript"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

const (
	defaultCloseReason   = "No reason provided"
	confirmedCloseReason = "Close request confirmed by ticket owner"
	deletedReason        = "Ticket deleted"
	uniqueViolation      = "23505"
)

var channelNameSanitizer = regexp.MustCompile(`[^a-z0-9]`)

// ChannelName builds the ticket channel name from the owner's display name
// and sequence number.
func ChannelName(ownerName string, sequence int) string {
	base := channelNameSanitizer.ReplaceAllString(strings.ToLower(ownerName), "")
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("ticket-%s-%03d", base, sequence)
}

// TicketService drives the ticket lifecycle: create, close, reopen, delete
// and transcripts.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	requests   repository.CloseRequestRepository
	tenants    *TenantService
	counter    *counter.Counter
	policy     *auth.Policy
	platform   platform.Platform
	renderer   transcript.Renderer
	scheduler  *scheduler.Scheduler
	dispatcher events.Dispatcher
	oplog      *OperatorLog
	metrics    *observability.Metrics
	clock      clock.Clock
	logger     *zap.Logger
	locks      *keylock.Locker
	workflow   config.WorkflowConfig
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	HistoryRepo      repository.TicketHistoryRepository
	// CloseRequestRepo lets lifecycle changes withdraw a pending close
	// request. Optional.
	CloseRequestRepo repository.CloseRequestRepository
	Tenants          *TenantService
	Counter          *counter.Counter
	Policy           *auth.Policy
	Platform         platform.Platform
	Renderer         transcript.Renderer
	Scheduler        *scheduler.Scheduler
	Dispatcher       events.Dispatcher
	OperatorLog      *OperatorLog
	Metrics          *observability.Metrics
	Clock            clock.Clock
	Logger           *zap.Logger
	Workflow         config.WorkflowConfig
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Policy == nil {
		deps.Policy = auth.NewPolicy()
	}
	if deps.OperatorLog == nil {
		deps.OperatorLog = NewOperatorLog(deps.Platform, deps.Tenants, deps.Metrics, deps.Logger)
	}
	if deps.Workflow.TranscriptHistoryLimit <= 0 {
		deps.Workflow.TranscriptHistoryLimit = 100
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		requests:   deps.CloseRequestRepo,
		tenants:    deps.Tenants,
		counter:    deps.Counter,
		policy:     deps.Policy,
		platform:   deps.Platform,
		renderer:   deps.Renderer,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		oplog:      deps.OperatorLog,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
		locks:      keylock.New(),
		workflow:   deps.Workflow,
	}
}

// Create opens a ticket for the actor in its tenant.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, ticketType domain.TicketType) (*domain.Ticket, error) {
	if !ticketType.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": ticketType})
	}
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, apperrors.NewNotConfigured(actor.TenantID)
	}

	unlock := s.locks.Lock(ownerKey(actor.TenantID, actor.UserID))
	defer unlock()

	existing, err := s.tickets.FindActiveByOwner(ctx, actor.TenantID, actor.UserID)
	if err == nil {
		return nil, apperrors.NewAlreadyOpen(existing.ChannelID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, s.oplog.StorageFailure(ctx, actor.TenantID, "ticket.find_active", err, zap.String("owner_id", actor.UserID))
	}

	seq, err := s.counter.Next(ctx, actor.TenantID)
	if err != nil {
		return nil, s.oplog.StorageFailure(ctx, actor.TenantID, "counter.next", err)
	}

	ownerName := actor.UserName
	if ownerName == "" {
		ownerName = actor.UserID
	}
	spec := platform.ChannelSpec{
		TenantID:   actor.TenantID,
		CategoryID: cfg.CategoryID,
		Name:       ChannelName(ownerName, seq),
		Topic:      actor.UserID,
		Overwrites: []platform.Overwrite{
			platform.PublicOverwrite(actor.TenantID),
			{Kind: platform.TargetMember, TargetID: actor.UserID, Access: platform.AccessOwner},
		},
	}
	for _, roleID := range cfg.SupportRoleIDs {
		spec.Overwrites = append(spec.Overwrites, platform.Overwrite{Kind: platform.TargetRole, TargetID: roleID, Access: platform.AccessStaff})
	}

	channel, err := s.platform.CreateChannel(ctx, spec)
	if err != nil {
		return nil, s.oplog.PlatformFailure(ctx, actor.TenantID, "channel.create", err, zap.String("channel_name", spec.Name))
	}

	ticket := &domain.Ticket{
		ChannelID:      channel.ID,
		TenantID:       actor.TenantID,
		OwnerID:        actor.UserID,
		Type:           ticketType,
		SequenceNumber: seq,
		ChannelName:    channel.Name,
		Status:         domain.TicketStatusOpen,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		// Without a record the channel cannot be managed, so it is rolled back.
		if delErr := s.platform.DeleteChannel(ctx, channel.ID, "ticket record could not be stored"); delErr != nil {
			s.logger.Warn("could not remove orphaned ticket channel", zap.String("channel_id", channel.ID), zap.Error(delErr))
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.NewAlreadyOpen("")
		}
		return nil, s.oplog.StorageFailure(ctx, actor.TenantID, "ticket.create", err, zap.String("channel_id", channel.ID))
	}

	s.recordHistory(ctx, ticket, actor.UserID, "", string(domain.TicketStatusOpen), "Ticket created")
	s.metrics.RecordTransition("", string(domain.TicketStatusOpen))
	s.logger.Info("ticket created",
		zap.String("tenant_id", ticket.TenantID),
		zap.String("channel_id", ticket.ChannelID),
		zap.String("owner_id", ticket.OwnerID),
		zap.Int("sequence", seq))

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TenantID:  ticket.TenantID,
		ChannelID: ticket.ChannelID,
		Actor:     events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			OwnerID:        ticket.OwnerID,
			Type:           ticket.Type,
			SequenceNumber: ticket.SequenceNumber,
			ChannelName:    ticket.ChannelName,
			SupportRoleIDs: cfg.SupportRoleIDs,
		},
	})
	return ticket, nil
}

// Close closes a ticket on behalf of its owner or staff. The owner keeps
// read access to the channel.
func (s *TicketService) Close(ctx context.Context, channelID string, actor domain.Actor, reason string) (*domain.Ticket, error) {
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsTicketOwner(ticket, actor) && !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only the ticket owner or staff can close this ticket")
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultCloseReason
	}
	return s.close(ctx, channelID, domain.TicketStatusClosed, events.ActorFrom(actor), reason)
}

// closeBySystem closes a ticket without an authorization check. The close
// request workflow uses it for confirmations and timeouts.
func (s *TicketService) closeBySystem(ctx context.Context, channelID string, status domain.TicketStatus, actor events.Actor, reason string) (*domain.Ticket, error) {
	return s.close(ctx, channelID, status, actor, reason)
}

func (s *TicketService) close(ctx context.Context, channelID string, status domain.TicketStatus, actor events.Actor, reason string) (*domain.Ticket, error) {
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	ticket, err := s.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	from := ticket.Status
	if err := s.transition(ctx, ticket, status, actor.UserID, reason); err != nil {
		return nil, err
	}
	s.withdrawCloseRequest(ctx, ticket, actor.UserID)

	if err := s.platform.SetMemberAccess(ctx, channelID, ticket.OwnerID, platform.AccessOwnerRead); err != nil && !errors.Is(err, platform.ErrChannelNotFound) {
		s.oplog.Report(ctx, ticket.TenantID, "Could not lock ticket channel", err, zap.String("channel_id", channelID))
	}

	eventType := events.EventTicketClosed
	if status == domain.TicketStatusAutoClosed {
		eventType = events.EventTicketAutoClosed
	}
	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		TenantID:  ticket.TenantID,
		ChannelID: channelID,
		Actor:     actor,
		Payload:   events.TicketStatusPayload{OldStatus: from, NewStatus: status, Reason: reason},
	})
	return ticket, nil
}

// Reopen restores a closed ticket and the owner's full access.
func (s *TicketService) Reopen(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can reopen tickets")
	}
	if ticket.OwnerID == "" {
		return nil, apperrors.NewOwnerUnknown(channelID)
	}

	unlockOwner := s.locks.Lock(ownerKey(ticket.TenantID, ticket.OwnerID))
	defer unlockOwner()
	unlock := s.locks.Lock(channelKey(channelID))
	defer unlock()

	ticket, err = s.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(ticket.Status, domain.TicketStatusReopened) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusReopened))
	}
	other, err := s.tickets.FindActiveByOwner(ctx, ticket.TenantID, ticket.OwnerID)
	if err == nil && other.ChannelID != channelID {
		return nil, apperrors.NewAlreadyOpen(other.ChannelID)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, s.oplog.StorageFailure(ctx, ticket.TenantID, "ticket.find_active", err, zap.String("channel_id", channelID))
	}

	// A request left over from before the close must not fire on the
	// reopened ticket.
	s.withdrawCloseRequest(ctx, ticket, actor.UserID)

	from := ticket.Status
	if err := s.transition(ctx, ticket, domain.TicketStatusReopened, actor.UserID, "Ticket reopened"); err != nil {
		return nil, err
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, ticket.OwnerID, platform.AccessOwner); err != nil {
		s.oplog.Report(ctx, ticket.TenantID, "Could not restore owner access", err,
			zap.String("channel_id", channelID), zap.String("owner_id", ticket.OwnerID))
	}
	if err := s.transition(ctx, ticket, domain.TicketStatusOpen, actor.UserID, "Ticket reopened"); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketReopened,
		TenantID:  ticket.TenantID,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload:   events.TicketStatusPayload{OldStatus: from, NewStatus: ticket.Status},
	})
	return ticket, nil
}

// Delete marks the ticket deleted and removes its channel after the grace
// delay. Once scheduled the removal cannot be cancelled.
func (s *TicketService) Delete(ctx context.Context, channelID string, actor domain.Actor) error {
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return apperrors.NewPermissionDenied("only staff can delete tickets")
	}

	unlock := s.locks.Lock(channelKey(channelID))
	ticket, err = s.getTicket(ctx, channelID)
	if err != nil {
		unlock()
		return err
	}
	from := ticket.Status
	err = s.transition(ctx, ticket, domain.TicketStatusDeleted, actor.UserID, deletedReason)
	if err == nil {
		s.withdrawCloseRequest(ctx, ticket, actor.UserID)
	}
	unlock()
	if err != nil {
		return err
	}

	s.scheduleRemoval(ctx, ticket, s.workflow.DeleteGrace, actor.UserID)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		TenantID:  ticket.TenantID,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload: events.TicketStatusPayload{
			OldStatus: from,
			NewStatus: domain.TicketStatusDeleted,
			Reason:    deletedReason,
			RemovalIn: s.workflow.DeleteGrace,
		},
	})
	return nil
}

// withdrawCloseRequest resolves the channel's pending close request, if any,
// and disarms its timer. Callers hold the channel lock.
func (s *TicketService) withdrawCloseRequest(ctx context.Context, ticket *domain.Ticket, actorID string) {
	if s.scheduler != nil {
		s.scheduler.Cancel(ticket.ChannelID)
	}
	if s.requests == nil {
		return
	}
	req, err := s.requests.Resolve(ctx, ticket.ChannelID, "", domain.CloseRequestWithdrawn, actorID, s.clock.Now())
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		s.oplog.StorageFailure(ctx, ticket.TenantID, "close_request.withdraw", err, zap.String("channel_id", ticket.ChannelID))
		return
	}
	s.recordHistory(ctx, ticket, actorID, "", domain.HistoryCloseWithdrawn, req.Reason)
	s.logger.Info("pending close request withdrawn",
		zap.String("channel_id", ticket.ChannelID),
		zap.String("request_id", req.RequestID),
		zap.String("ticket_status", string(ticket.Status)))
}

// scheduleRemoval deletes the ticket channel after delay.
func (s *TicketService) scheduleRemoval(_ context.Context, ticket *domain.Ticket, delay time.Duration, actorID string) {
	channelID, tenantID := ticket.ChannelID, ticket.TenantID
	s.logger.Info("channel removal scheduled",
		zap.String("channel_id", channelID),
		zap.String("actor_id", actorID),
		zap.Duration("delay", delay))
	s.scheduler.Defer(delay, func(ctx context.Context) {
		err := s.platform.DeleteChannel(ctx, channelID, fmt.Sprintf("Ticket removed by %s", actorID))
		if err == nil || errors.Is(err, platform.ErrChannelNotFound) {
			s.logger.Info("ticket channel removed", zap.String("channel_id", channelID))
			return
		}
		s.oplog.Report(ctx, tenantID, "Could not remove ticket channel", err, zap.String("channel_id", channelID))
	})
}

// GenerateTranscript renders the most recent messages of a ticket channel.
func (s *TicketService) GenerateTranscript(ctx context.Context, channelID string, actor domain.Actor) (*domain.Artifact, error) {
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can generate transcripts")
	}

	messages, err := s.platform.RecentMessages(ctx, channelID, s.workflow.TranscriptHistoryLimit)
	if err != nil {
		return nil, s.oplog.PlatformFailure(ctx, ticket.TenantID, "channel.history", err, zap.String("channel_id", channelID))
	}
	artifact, err := s.renderer.Render(ctx, ticket, messages)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if cfg.TranscriptChannelID != "" {
		notice := fmt.Sprintf("Transcript for **%s** (ticket #%03d, %d messages) generated by <@%s>: %s",
			ticket.ChannelName, ticket.SequenceNumber, artifact.MessageCount, actor.UserID, artifact.Location)
		if _, err := s.platform.PostMessage(ctx, cfg.TranscriptChannelID, notice); err != nil {
			s.logger.Warn("could not post transcript notice", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return artifact, nil
}

// Get returns a ticket visible to its owner and to staff.
func (s *TicketService) Get(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsTicketOwner(ticket, actor) && !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("ticket not visible")
	}
	return ticket, nil
}

// History returns the audit trail of a ticket for staff.
func (s *TicketService) History(ctx context.Context, channelID string, actor domain.Actor) ([]domain.TicketHistory, error) {
	_, cfg, err := s.loadForActor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can view ticket history")
	}
	entries, err := s.history.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, apperrors.NewStorageFailure("ticket_history.list", err)
	}
	return entries, nil
}

// ListByTenant lists tickets in the actor's tenant for staff.
func (s *TicketService) ListByTenant(ctx context.Context, actor domain.Actor, filter repository.TicketFilter) ([]domain.Ticket, error) {
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can list tickets")
	}
	filter.TenantID = actor.TenantID
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageFailure("ticket.list", err)
	}
	return tickets, nil
}

// Stats counts the tickets of the actor's tenant by status and type.
func (s *TicketService) Stats(ctx context.Context, actor domain.Actor) (*domain.TicketStats, error) {
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can view ticket statistics")
	}
	stats, err := s.tickets.Stats(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.NewStorageFailure("ticket.stats", err)
	}
	return stats, nil
}

// transition persists a status change conditioned on the status ticket was
// read with. Losing that race yields INVALID_TRANSITION against the stored
// status.
func (s *TicketService) transition(ctx context.Context, ticket *domain.Ticket, to domain.TicketStatus, actorID, reason string) error {
	from := ticket.Status
	if !domain.CanTransition(from, to) {
		return apperrors.NewInvalidTransition(string(from), string(to))
	}

	updated := *ticket
	updated.Status = to
	now := s.clock.Now()
	switch to {
	case domain.TicketStatusClosed, domain.TicketStatusAutoClosed:
		updated.ClosedAt = &now
		updated.ClosedBy = &actorID
		updated.CloseReason = &reason
	case domain.TicketStatusDeleted:
		if updated.ClosedAt == nil {
			updated.ClosedAt = &now
		}
		updated.ClosedBy = &actorID
		if updated.CloseReason == nil {
			updated.CloseReason = &reason
		}
	case domain.TicketStatusReopened:
		updated.ClosedAt, updated.ClosedBy, updated.CloseReason = nil, nil, nil
	}

	if err := s.tickets.Update(ctx, &updated, from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current := "UNKNOWN"
			if stored, getErr := s.tickets.GetByChannel(ctx, ticket.ChannelID); getErr == nil {
				current = string(stored.Status)
			}
			return apperrors.NewInvalidTransition(current, string(to))
		}
		return s.oplog.StorageFailure(ctx, ticket.TenantID, "ticket.update", err,
			zap.String("channel_id", ticket.ChannelID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	}

	*ticket = updated
	s.recordHistory(ctx, ticket, actorID, string(from), string(to), reason)
	s.metrics.RecordTransition(string(from), string(to))
	s.logger.Info("ticket status changed",
		zap.String("channel_id", ticket.ChannelID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actorID))
	return nil
}

func (s *TicketService) recordHistory(ctx context.Context, ticket *domain.Ticket, actorID, from, to, reason string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		ChannelID:  ticket.ChannelID,
		TenantID:   ticket.TenantID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.oplog.StorageFailure(ctx, ticket.TenantID, "ticket_history.create", err, zap.String("channel_id", ticket.ChannelID))
	}
}

// loadForActor reads the ticket and its tenant configuration. Tickets of
// other tenants are reported as missing.
func (s *TicketService) loadForActor(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, *domain.TenantConfig, error) {
	ticket, err := s.getTicket(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.TenantID != actor.TenantID {
		return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	cfg, err := s.tenants.Get(ctx, ticket.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, cfg, nil
}

func (s *TicketService) getTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	if err != nil {
		return nil, apperrors.NewStorageFailure("ticket.get", err)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.clock, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, clk clock.Clock, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = clk.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func ownerKey(tenantID, ownerID string) string {
	return "owner:" + tenantID + ":" + ownerID
}

func channelKey(channelID string) string {
	return "channel:" + channelID
}
