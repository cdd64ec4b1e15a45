// Package platform is the outbound side of the chat platform: channel
// management, permission overwrites and messages.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// ErrChannelNotFound is returned when the platform no longer knows a channel.
var ErrChannelNotFound = errors.New("platform: channel not found")

// Access is a permission overwrite for one member or role on a channel.
type Access struct {
	View    bool `json:"view"`
	Send    bool `json:"send"`
	History bool `json:"history"`
	Attach  bool `json:"attach"`
	Manage  bool `json:"manage"`
}

// Common overwrites used by the ticket lifecycle.
var (
	AccessDenied    = Access{}
	AccessOwner     = Access{View: true, Send: true, History: true, Attach: true}
	AccessOwnerRead = Access{View: true, History: true}
	AccessStaff     = Access{View: true, Send: true, History: true, Attach: true, Manage: true}
)

// TargetKind says whether an overwrite applies to a member or a role.
type TargetKind string

const (
	TargetMember TargetKind = "member"
	TargetRole   TargetKind = "role"
)

// Overwrite binds an Access to a member or role.
type Overwrite struct {
	Kind     TargetKind `json:"kind"`
	TargetID string     `json:"target_id"`
	Access   Access     `json:"access"`
}

// ChannelSpec describes a channel to create. The tenant's public role has the
// same id as the tenant.
type ChannelSpec struct {
	TenantID   string      `json:"tenant_id"`
	CategoryID string      `json:"category_id"`
	Name       string      `json:"name"`
	Topic      string      `json:"topic,omitempty"`
	Overwrites []Overwrite `json:"overwrites"`
}

// Channel is a live platform channel.
type Channel struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Topic      string    `json:"topic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Platform is what the services need from the chat platform.
type Platform interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (*Channel, error)
	SetMemberAccess(ctx context.Context, channelID, userID string, access Access) error
	SetRoleAccess(ctx context.Context, channelID, roleID string, access Access) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	// PostMessage returns the id of the posted message.
	PostMessage(ctx context.Context, channelID, content string) (string, error)
	// RecentMessages returns at most limit messages, oldest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
	ListChannels(ctx context.Context, tenantID, categoryID string) ([]Channel, error)
}

// PublicOverwrite denies the tenant's public role.
func PublicOverwrite(tenantID string) Overwrite {
	return Overwrite{Kind: TargetRole, TargetID: tenantID, Access: AccessDenied}
}
