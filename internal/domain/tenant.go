package domain

import "time"

// Default retention windows, in days.
const (
	DefaultCleanupLogsDays     = 30
	DefaultCleanupRequestsDays = 30
)

// TenantConfig is the per-server configuration of the ticket system.
type TenantConfig struct {
	TenantID            string
	CategoryID          string
	PanelChannelID      string
	TranscriptChannelID string
	ErrorLogChannelID   string
	SupportRoleIDs      []string
	TicketCounter       int
	CleanupLogsDays     int
	CleanupRequestsDays int
	UpdatedAt           time.Time
}

// NewTenantConfig returns an empty configuration with default retention.
func NewTenantConfig(tenantID string) *TenantConfig {
	return &TenantConfig{
		TenantID:            tenantID,
		CleanupLogsDays:     DefaultCleanupLogsDays,
		CleanupRequestsDays: DefaultCleanupRequestsDays,
	}
}

// IsConfigured reports whether tickets can be opened for the tenant.
func (c *TenantConfig) IsConfigured() bool {
	if c == nil {
		return false
	}
	return c.CategoryID != "" && c.TranscriptChannelID != "" && c.PanelChannelID != "" && len(c.SupportRoleIDs) > 0
}

// Clone returns a deep copy safe to hand to callers of a shared cache.
func (c *TenantConfig) Clone() *TenantConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.SupportRoleIDs = append([]string(nil), c.SupportRoleIDs...)
	return &out
}
