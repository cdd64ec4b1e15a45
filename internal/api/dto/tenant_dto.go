package dto

import "time"

// TenantConfigRequest payload. Omitted retention windows keep their defaults.
type TenantConfigRequest struct {
	CategoryID          string   `json:"category_id"`
	PanelChannelID      string   `json:"panel_channel_id"`
	TranscriptChannelID string   `json:"transcript_channel_id"`
	ErrorLogChannelID   string   `json:"error_log_channel_id"`
	SupportRoleIDs      []string `json:"support_role_ids"`
	CleanupLogsDays     *int     `json:"cleanup_logs_days"`
	CleanupRequestsDays *int     `json:"cleanup_requests_days"`
}

// TenantConfigResponse represents a tenant configuration.
type TenantConfigResponse struct {
	TenantID            string    `json:"tenant_id"`
	CategoryID          string    `json:"category_id"`
	PanelChannelID      string    `json:"panel_channel_id"`
	TranscriptChannelID string    `json:"transcript_channel_id"`
	ErrorLogChannelID   string    `json:"error_log_channel_id"`
	SupportRoleIDs      []string  `json:"support_role_ids"`
	TicketCounter       int       `json:"ticket_counter"`
	CleanupLogsDays     int       `json:"cleanup_logs_days"`
	CleanupRequestsDays int       `json:"cleanup_requests_days"`
	Configured          bool      `json:"configured"`
	UpdatedAt           time.Time `json:"updated_at"`
}
