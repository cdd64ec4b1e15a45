package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbot/internal/api/dto"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/service"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// TenantsHandler exposes the ticket settings of the caller's tenant.
type TenantsHandler struct {
	service *service.TenantService
}

// NewTenantsHandler constructs handler.
func NewTenantsHandler(tenants *service.TenantService) *TenantsHandler {
	return &TenantsHandler{service: tenants}
}

// GetConfig GET /v1/tenants/config.
func (h *TenantsHandler) GetConfig(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	cfg, err := h.service.Get(c.UserContext(), actor.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tenantConfigResponse(cfg)})
}

// PutConfig PUT /v1/tenants/config.
func (h *TenantsHandler) PutConfig(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TenantConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	current, err := h.service.Get(c.UserContext(), actor.TenantID)
	if err != nil {
		return err
	}
	cfg := current.Clone()
	cfg.CategoryID = req.CategoryID
	cfg.PanelChannelID = req.PanelChannelID
	cfg.TranscriptChannelID = req.TranscriptChannelID
	cfg.ErrorLogChannelID = req.ErrorLogChannelID
	cfg.SupportRoleIDs = req.SupportRoleIDs
	if req.CleanupLogsDays != nil {
		cfg.CleanupLogsDays = *req.CleanupLogsDays
	}
	if req.CleanupRequestsDays != nil {
		cfg.CleanupRequestsDays = *req.CleanupRequestsDays
	}

	saved, err := h.service.Save(c.UserContext(), actor, cfg)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tenantConfigResponse(saved)})
}

func tenantConfigResponse(cfg *domain.TenantConfig) dto.TenantConfigResponse {
	roles := cfg.SupportRoleIDs
	if roles == nil {
		roles = []string{}
	}
	return dto.TenantConfigResponse{
		TenantID:            cfg.TenantID,
		CategoryID:          cfg.CategoryID,
		PanelChannelID:      cfg.PanelChannelID,
		TranscriptChannelID: cfg.TranscriptChannelID,
		ErrorLogChannelID:   cfg.ErrorLogChannelID,
		SupportRoleIDs:      roles,
		TicketCounter:       cfg.TicketCounter,
		CleanupLogsDays:     cfg.CleanupLogsDays,
		CleanupRequestsDays: cfg.CleanupRequestsDays,
		Configured:          cfg.IsConfigured(),
		UpdatedAt:           cfg.UpdatedAt,
	}
}
