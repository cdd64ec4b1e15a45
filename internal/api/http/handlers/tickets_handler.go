package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbot/internal/api/dto"
	"github.com/spec-kit/ticketbot/internal/auth"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/repository"
	"github.com/spec-kit/ticketbot/internal/service"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// TicketsHandler serves ticket lifecycle interactions forwarded by the
// gateway.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Type == "" {
		req.Type = domain.TicketTypeSupport
	}
	req.Type = domain.TicketType(strings.ToUpper(string(req.Type)))

	ticket, err := h.service.Create(c.UserContext(), actor, req.Type)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query := parseTicketQuery(c)
	filter := repository.TicketFilter{
		OwnerID:  query.OwnerID,
		Statuses: query.Statuses,
		Limit:    query.PageSize,
		Offset:   (query.Page - 1) * query.PageSize,
	}
	tickets, err := h.service.ListByTenant(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /v1/tickets/:channel.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), c.Params("channel"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetHistory GET /v1/tickets/:channel/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), c.Params("channel"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// CloseTicket POST /v1/tickets/:channel/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.Close(c.UserContext(), c.Params("channel"), actor, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ReopenTicket POST /v1/tickets/:channel/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Reopen(c.UserContext(), c.Params("channel"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /v1/tickets/:channel. The channel itself is removed
// after the grace period.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID := c.Params("channel")
	if err := h.service.Delete(c.UserContext(), channelID, actor); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"channel_id": channelID,
		"status":     domain.TicketStatusDeleted,
	}})
}

// GenerateTranscript POST /v1/tickets/:channel/transcript.
func (h *TicketsHandler) GenerateTranscript(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	artifact, err := h.service.GenerateTranscript(c.UserContext(), c.Params("channel"), actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TranscriptResponse{
		ID:           artifact.ID,
		ChannelID:    artifact.ChannelID,
		Location:     artifact.Location,
		MessageCount: artifact.MessageCount,
		CreatedAt:    artifact.CreatedAt,
	}})
}

// AssignTicket POST /v1/tickets/:channel/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	assignee := domain.Actor{
		TenantID:      actor.TenantID,
		UserID:        req.AssigneeID,
		UserName:      req.AssigneeName,
		RoleIDs:       req.AssigneeRoleIDs,
		Administrator: req.Administrator,
	}
	ticket, err := h.service.Assign(c.UserContext(), c.Params("channel"), actor, assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":      ticketResponse(ticket),
		"assignee_id": assignee.UserID,
	}})
}

// GetStats GET /v1/tickets/stats.
func (h *TicketsHandler) GetStats(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Total:    stats.Total,
		ByStatus: stats.ByStatus,
		ByType:   stats.ByType,
	}})
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("actor required")
	}
	return actor, nil
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}
	if owner := c.Query("owner_id"); owner != "" {
		query.OwnerID = &owner
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			query.Statuses = append(query.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	return query
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ChannelID:      ticket.ChannelID,
		TenantID:       ticket.TenantID,
		OwnerID:        ticket.OwnerID,
		Type:           ticket.Type,
		SequenceNumber: ticket.SequenceNumber,
		ChannelName:    ticket.ChannelName,
		Status:         ticket.Status,
		CreatedAt:      ticket.CreatedAt,
		ClosedAt:       ticket.ClosedAt,
		ClosedBy:       ticket.ClosedBy,
		CloseReason:    ticket.CloseReason,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Reason:     entry.Reason,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}
