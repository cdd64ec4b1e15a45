package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/auth"
	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/config"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/keylock"
	"github.com/spec-kit/ticketbot/internal/observability"
	"github.com/spec-kit/ticketbot/internal/repository"
	"github.com/spec-kit/ticketbot/internal/scheduler"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// CloseRequestService runs staff close requests: the owner confirms or
// denies, or an optional timeout auto-closes the ticket.
type CloseRequestService struct {
	requests   repository.CloseRequestRepository
	exclusions repository.ExclusionRepository
	history    repository.TicketHistoryRepository
	tickets    *TicketService
	tenants    *TenantService
	policy     *auth.Policy
	scheduler  *scheduler.Scheduler
	dispatcher events.Dispatcher
	oplog      *OperatorLog
	metrics    *observability.Metrics
	clock      clock.Clock
	logger     *zap.Logger
	locks      *keylock.Locker
	workflow   config.WorkflowConfig
}

// CloseRequestDependencies bundles collaborators for the workflow.
type CloseRequestDependencies struct {
	CloseRequestRepo repository.CloseRequestRepository
	ExclusionRepo    repository.ExclusionRepository
	HistoryRepo      repository.TicketHistoryRepository
	Tickets          *TicketService
	Tenants          *TenantService
	Policy           *auth.Policy
	Scheduler        *scheduler.Scheduler
	Dispatcher       events.Dispatcher
	OperatorLog      *OperatorLog
	Metrics          *observability.Metrics
	Clock            clock.Clock
	Logger           *zap.Logger
	Workflow         config.WorkflowConfig
}

// RequestResult is returned by Request.
type RequestResult struct {
	Request *domain.CloseRequest
	// TimeoutDropped is set when a timeout was supplied for a channel that
	// is excluded from auto-close.
	TimeoutDropped bool
}

// NewCloseRequestService constructs the workflow.
func NewCloseRequestService(deps CloseRequestDependencies) *CloseRequestService {
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
		deps.OperatorLog = NewOperatorLog(nil, deps.Tenants, deps.Metrics, deps.Logger)
	}
	if deps.Workflow.MaxTimeoutHours <= 0 {
		deps.Workflow.MaxTimeoutHours = 720
	}
	return &CloseRequestService{
		requests:   deps.CloseRequestRepo,
		exclusions: deps.ExclusionRepo,
		history:    deps.HistoryRepo,
		tickets:    deps.Tickets,
		tenants:    deps.Tenants,
		policy:     deps.Policy,
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

// Request asks the ticket owner to confirm closing the ticket.
func (s *CloseRequestService) Request(ctx context.Context, channelID string, actor domain.Actor, reason string, timeoutHours *int) (*RequestResult, error) {
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return nil, apperrors.NewPermissionDenied("only staff can request a ticket close")
	}
	if timeoutHours != nil && (*timeoutHours < 1 || *timeoutHours > s.workflow.MaxTimeoutHours) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("timeout must be between 1 and %d hours", s.workflow.MaxTimeoutHours),
			map[string]any{"timeout_hours": *timeoutHours})
	}
	ticket, err := s.ticketFor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !ticket.Active() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed))
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultCloseReason
	}

	unlock := s.locks.Lock(channelID)
	excluded, err := s.exclusions.IsExcluded(ctx, channelID)
	if err != nil {
		unlock()
		return nil, s.oplog.StorageFailure(ctx, ticket.TenantID, "autoclose_exclusion.get", err, zap.String("channel_id", channelID))
	}
	result := &RequestResult{}
	if excluded && timeoutHours != nil {
		timeoutHours = nil
		result.TimeoutDropped = true
	}

	req := &domain.CloseRequest{
		ChannelID:             channelID,
		RequestID:             uuid.NewString(),
		TenantID:              ticket.TenantID,
		RequestedBy:           actor.UserID,
		TicketOwner:           ticket.OwnerID,
		Reason:                reason,
		TimeoutHours:          timeoutHours,
		Status:                domain.CloseRequestPending,
		CreatedAt:             s.clock.Now(),
		ExcludedFromAutoClose: excluded,
	}
	created, err := s.requests.CreatePending(ctx, req)
	if err != nil {
		unlock()
		return nil, s.oplog.StorageFailure(ctx, ticket.TenantID, "close_request.create", err, zap.String("channel_id", channelID))
	}
	if !created {
		unlock()
		return nil, apperrors.NewDuplicateRequest(channelID)
	}
	// Arm before unlocking so a deny and a newer request cannot slip in
	// between and have their timer replaced by this one.
	if req.TimeoutHours != nil {
		s.arm(req)
	}
	unlock()
	result.Request = req

	s.recordHistory(ctx, req, actor.UserID, domain.HistoryCloseRequested, reason)
	s.logger.Info("close requested",
		zap.String("channel_id", channelID),
		zap.String("request_id", req.RequestID),
		zap.String("requested_by", actor.UserID),
		zap.Bool("timeout_dropped", result.TimeoutDropped))

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventCloseRequested,
		TenantID:  req.TenantID,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload: events.CloseRequestedPayload{
			RequestID:      req.RequestID,
			TicketOwner:    req.TicketOwner,
			Reason:         reason,
			TimeoutHours:   req.TimeoutHours,
			TimeoutDropped: result.TimeoutDropped,
		},
	})
	return result, nil
}

// AttachMessage records the id of the prompt message shown to the owner.
// Only staff of the ticket's tenant may set it.
func (s *CloseRequestService) AttachMessage(ctx context.Context, channelID string, actor domain.Actor, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return apperrors.NewValidationError("message_id is required", nil)
	}
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return apperrors.NewPermissionDenied("only staff can attach a close request prompt")
	}
	if _, err := s.ticketFor(ctx, channelID, actor); err != nil {
		return err
	}
	return s.recordPromptMessage(ctx, channelID, messageID)
}

// recordPromptMessage stores the prompt id posted by the notification
// service on the request's behalf.
func (s *CloseRequestService) recordPromptMessage(ctx context.Context, channelID, messageID string) error {
	err := s.requests.SetMessageID(ctx, channelID, messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNoPendingRequest(channelID)
	}
	if err != nil {
		return apperrors.NewStorageFailure("close_request.set_message", err)
	}
	return nil
}

// Confirm accepts the pending request and closes the ticket.
func (s *CloseRequestService) Confirm(ctx context.Context, channelID string, actor domain.Actor) error {
	resolved, err := s.respond(ctx, channelID, actor, domain.CloseRequestConfirmed, domain.HistoryCloseConfirmed)
	if err != nil {
		return err
	}
	if _, err := s.tickets.closeBySystem(ctx, channelID, domain.TicketStatusClosed, events.ActorFrom(actor), confirmedCloseReason); err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			s.logger.Info("ticket already closed when close request was confirmed",
				zap.String("channel_id", channelID), zap.String("request_id", resolved.RequestID))
			return nil
		}
		return err
	}
	return nil
}

// Deny rejects the pending request. The ticket stays open.
func (s *CloseRequestService) Deny(ctx context.Context, channelID string, actor domain.Actor) error {
	_, err := s.respond(ctx, channelID, actor, domain.CloseRequestDenied, domain.HistoryCloseDenied)
	return err
}

func (s *CloseRequestService) respond(ctx context.Context, channelID string, actor domain.Actor, status domain.CloseRequestStatus, historyStatus string) (*domain.CloseRequest, error) {
	pending, err := s.requests.GetPending(ctx, channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNoPendingRequest(channelID)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailure("close_request.get", err)
	}
	ticket, err := s.ticketFor(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.IsTicketOwner(ticket, actor) || pending.TicketOwner != actor.UserID {
		return nil, apperrors.NewNotOwner("only the ticket owner can respond to a close request")
	}

	unlock := s.locks.Lock(channelID)
	resolved, err := s.requests.Resolve(ctx, channelID, pending.RequestID, status, actor.UserID, s.clock.Now())
	if err == nil {
		s.scheduler.Cancel(channelID)
	}
	unlock()
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNoPendingRequest(channelID)
	}
	if err != nil {
		return nil, s.oplog.StorageFailure(ctx, pending.TenantID, "close_request.resolve", err, zap.String("channel_id", channelID))
	}

	s.recordHistory(ctx, resolved, actor.UserID, historyStatus, resolved.Reason)
	s.logger.Info("close request resolved",
		zap.String("channel_id", channelID),
		zap.String("request_id", resolved.RequestID),
		zap.String("status", string(status)))
	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventCloseRequestResolved,
		TenantID:  resolved.TenantID,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload:   events.CloseRequestResolvedPayload{RequestID: resolved.RequestID, Status: status},
	})
	return resolved, nil
}

// OnTimeout auto-closes the ticket if the request it was armed for is still
// pending in the store. Failures are reported and never retried.
func (s *CloseRequestService) OnTimeout(ctx context.Context, channelID, requestID string) {
	s.metrics.RecordTimerFired()

	unlock := s.locks.Lock(channelID)
	resolved, err := s.requests.Resolve(ctx, channelID, requestID, domain.CloseRequestAutoClosed, domain.SystemActorID, s.clock.Now())
	unlock()
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("close request timeout is stale",
			zap.String("channel_id", channelID), zap.String("request_id", requestID))
		return
	}
	if err != nil {
		s.oplog.StorageFailure(ctx, "", "close_request.resolve", err,
			zap.String("channel_id", channelID), zap.String("request_id", requestID))
		return
	}

	hours := 0
	if resolved.TimeoutHours != nil {
		hours = *resolved.TimeoutHours
	}
	reason := fmt.Sprintf("Automatically closed: no response to close request within %d hour(s)", hours)
	s.recordHistory(ctx, resolved, domain.SystemActorID, domain.HistoryAutoClosed, reason)

	ticket, err := s.tickets.closeBySystem(ctx, channelID, domain.TicketStatusAutoClosed, events.SystemActor, reason)
	if apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		s.logger.Info("ticket no longer open when close request timed out",
			zap.String("channel_id", channelID), zap.String("request_id", requestID))
		return
	}
	if err != nil {
		s.oplog.Report(ctx, resolved.TenantID, "Auto-close failed", err,
			zap.String("channel_id", channelID), zap.String("request_id", requestID))
		return
	}
	s.tickets.scheduleRemoval(ctx, ticket, s.workflow.AutoCloseDeleteDelay, domain.SystemActorID)

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventCloseRequestResolved,
		TenantID:  resolved.TenantID,
		ChannelID: channelID,
		Actor:     events.SystemActor,
		Payload:   events.CloseRequestResolvedPayload{RequestID: requestID, Status: domain.CloseRequestAutoClosed},
	})
}

// Exclude exempts the channel from auto-close. A timer already armed for a
// pending request keeps running. It reports whether the channel was newly
// excluded.
func (s *CloseRequestService) Exclude(ctx context.Context, channelID string, actor domain.Actor) (bool, error) {
	cfg, err := s.tenants.Get(ctx, actor.TenantID)
	if err != nil {
		return false, err
	}
	if !s.policy.HasStaff(actor, cfg) {
		return false, apperrors.NewPermissionDenied("only staff can exclude tickets from auto-close")
	}
	ticket, err := s.ticketFor(ctx, channelID, actor)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(channelID)
	defer unlock()

	now := s.clock.Now()
	created, err := s.exclusions.Exclude(ctx, &domain.AutoCloseExclusion{ChannelID: channelID, ExcludedBy: actor.UserID, ExcludedAt: now})
	if err != nil {
		return false, s.oplog.StorageFailure(ctx, ticket.TenantID, "autoclose_exclusion.create", err, zap.String("channel_id", channelID))
	}
	if err := s.requests.MarkExcluded(ctx, ticket.TenantID, channelID, actor.UserID, now); err != nil {
		return false, s.oplog.StorageFailure(ctx, ticket.TenantID, "close_request.mark_excluded", err, zap.String("channel_id", channelID))
	}
	s.logger.Info("channel excluded from auto-close",
		zap.String("channel_id", channelID),
		zap.String("actor_id", actor.UserID),
		zap.Bool("new", created))
	return created, nil
}

// RearmPending re-arms the timers of every pending request with a timeout.
// Overdue requests fire immediately.
func (s *CloseRequestService) RearmPending(ctx context.Context) (int, error) {
	pending, err := s.requests.ListPendingWithTimeout(ctx)
	if err != nil {
		return 0, apperrors.NewStorageFailure("close_request.list_pending", err)
	}
	for i := range pending {
		s.arm(&pending[i])
	}
	if len(pending) > 0 {
		s.logger.Info("re-armed close request timers", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

// Pending returns the pending request for a channel, if any.
func (s *CloseRequestService) Pending(ctx context.Context, channelID string, actor domain.Actor) (*domain.CloseRequest, error) {
	if _, err := s.ticketFor(ctx, channelID, actor); err != nil {
		return nil, err
	}
	req, err := s.requests.GetPending(ctx, channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNoPendingRequest(channelID)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailure("close_request.get", err)
	}
	return req, nil
}

// arm schedules the timeout for req, superseding any timer of the channel.
func (s *CloseRequestService) arm(req *domain.CloseRequest) {
	deadline, ok := req.Deadline()
	if !ok {
		return
	}
	delay := deadline.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	channelID, requestID := req.ChannelID, req.RequestID
	s.scheduler.Schedule(channelID, delay, func(ctx context.Context) {
		s.OnTimeout(ctx, channelID, requestID)
	})
	s.logger.Debug("close request timer armed",
		zap.String("channel_id", channelID),
		zap.String("request_id", requestID),
		zap.Time("fires_at", deadline),
		zap.Duration("delay", delay.Round(time.Second)))
}

func (s *CloseRequestService) ticketFor(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.tickets.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.TenantID != actor.TenantID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	return ticket, nil
}

func (s *CloseRequestService) recordHistory(ctx context.Context, req *domain.CloseRequest, actorID, status, reason string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		ChannelID: req.ChannelID,
		TenantID:  req.TenantID,
		ActorID:   actorID,
		ToStatus:  status,
		Reason:    reason,
		CreatedAt: s.clock.Now(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.oplog.StorageFailure(ctx, req.TenantID, "ticket_history.create", err, zap.String("channel_id", req.ChannelID))
	}
}
