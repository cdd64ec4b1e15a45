package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusOpen, TicketStatusClosed, true},
		{TicketStatusOpen, TicketStatusAutoClosed, true},
		{TicketStatusOpen, TicketStatusDeleted, true},
		{TicketStatusOpen, TicketStatusReopened, false},
		{TicketStatusClosed, TicketStatusReopened, true},
		{TicketStatusClosed, TicketStatusOpen, false},
		{TicketStatusReopened, TicketStatusOpen, true},
		{TicketStatusAutoClosed, TicketStatusReopened, false},
		{TicketStatusAutoClosed, TicketStatusDeleted, true},
		{TicketStatusDeleted, TicketStatusOpen, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTenantConfigIsConfigured(t *testing.T) {
	cfg := NewTenantConfig("g1")
	if cfg.IsConfigured() {
		t.Fatalf("empty config reported configured")
	}
	cfg.CategoryID, cfg.PanelChannelID, cfg.TranscriptChannelID = "cat", "panel", "tr"
	if cfg.IsConfigured() {
		t.Fatalf("config without support roles reported configured")
	}
	cfg.SupportRoleIDs = []string{"r1"}
	if !cfg.IsConfigured() {
		t.Fatalf("expected configured")
	}
	clone := cfg.Clone()
	clone.SupportRoleIDs[0] = "changed"
	if cfg.SupportRoleIDs[0] != "r1" {
		t.Fatalf("Clone shares the role slice")
	}
}

func TestCloseRequestDeadline(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	req := &CloseRequest{CreatedAt: created}
	if _, ok := req.Deadline(); ok {
		t.Fatalf("request without timeout has a deadline")
	}
	hours := 5
	req.TimeoutHours = &hours
	got, ok := req.Deadline()
	if !ok || !got.Equal(created.Add(5*time.Hour)) {
		t.Fatalf("Deadline = %v, %v", got, ok)
	}
}
