package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbot/internal/api/dto"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/service"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// CloseRequestsHandler serves the close request buttons and commands.
type CloseRequestsHandler struct {
	service *service.CloseRequestService
}

// NewCloseRequestsHandler constructs handler.
func NewCloseRequestsHandler(closeRequests *service.CloseRequestService) *CloseRequestsHandler {
	return &CloseRequestsHandler{service: closeRequests}
}

// RequestClose POST /v1/tickets/:channel/close-request.
func (h *CloseRequestsHandler) RequestClose(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CloseRequestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.service.Request(c.UserContext(), c.Params("channel"), actor, req.Reason, req.TimeoutHours)
	if err != nil {
		return err
	}
	resp := closeRequestResponse(result.Request)
	resp.TimeoutDropped = result.TimeoutDropped
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// GetCloseRequest GET /v1/tickets/:channel/close-request.
func (h *CloseRequestsHandler) GetCloseRequest(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	req, err := h.service.Pending(c.UserContext(), c.Params("channel"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": closeRequestResponse(req)})
}

// Confirm POST /v1/tickets/:channel/close-request/confirm.
func (h *CloseRequestsHandler) Confirm(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID := c.Params("channel")
	if err := h.service.Confirm(c.UserContext(), channelID, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"channel_id": channelID, "status": domain.CloseRequestConfirmed}})
}

// Deny POST /v1/tickets/:channel/close-request/deny.
func (h *CloseRequestsHandler) Deny(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID := c.Params("channel")
	if err := h.service.Deny(c.UserContext(), channelID, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"channel_id": channelID, "status": domain.CloseRequestDenied}})
}

// AttachMessage POST /v1/tickets/:channel/close-request/message.
func (h *CloseRequestsHandler) AttachMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AttachMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.MessageID) == "" {
		return apperrors.NewValidationError("message_id required", nil)
	}
	if err := h.service.AttachMessage(c.UserContext(), c.Params("channel"), actor, req.MessageID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Exclude POST /v1/tickets/:channel/autoclose-exclusion.
func (h *CloseRequestsHandler) Exclude(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	channelID := c.Params("channel")
	created, err := h.service.Exclude(c.UserContext(), channelID, actor)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.ExclusionResponse{ChannelID: channelID, Created: created}})
}

func closeRequestResponse(req *domain.CloseRequest) dto.CloseRequestResponse {
	resp := dto.CloseRequestResponse{
		RequestID:             req.RequestID,
		ChannelID:             req.ChannelID,
		RequestedBy:           req.RequestedBy,
		TicketOwner:           req.TicketOwner,
		Reason:                req.Reason,
		TimeoutHours:          req.TimeoutHours,
		Status:                req.Status,
		CreatedAt:             req.CreatedAt,
		RespondedAt:           req.RespondedAt,
		RespondedBy:           req.RespondedBy,
		MessageID:             req.MessageID,
		ExcludedFromAutoClose: req.ExcludedFromAutoClose,
	}
	if deadline, ok := req.Deadline(); ok {
		resp.DeadlineAt = &deadline
	}
	return resp
}
