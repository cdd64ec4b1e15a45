package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/platform"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

var helperActor = domain.Actor{TenantID: testTenant, UserID: "u-helper", UserName: "Hal", RoleIDs: []string{testSupportRole}}

func TestAssignGrantsStaffAccess(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	got, err := h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, helperActor)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.Status != domain.TicketStatusOpen {
		t.Fatalf("assignment changed status to %s", got.Status)
	}
	if access, ok := h.platform.MemberAccess(ticket.ChannelID, helperActor.UserID); !ok || access != platform.AccessStaff {
		t.Fatalf("assignee access = %+v, %v", access, ok)
	}

	entries, _ := h.store.History.ListByChannel(h.ctx, ticket.ChannelID)
	last := entries[len(entries)-1]
	if last.ToStatus != domain.HistoryAssigned || last.ActorID != staffActor.UserID || !strings.Contains(last.Reason, helperActor.UserID) {
		t.Fatalf("history entry = %+v", last)
	}
	msgs := h.platform.Messages(ticket.ChannelID)
	if notice := msgs[len(msgs)-1].Content; !strings.Contains(notice, "assigned to <@"+helperActor.UserID+">") {
		t.Fatalf("assignment notice = %q", notice)
	}
}

func TestAssignRequiresStaffOnBothSides(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	_, err := h.tickets.Assign(h.ctx, ticket.ChannelID, ownerActor, helperActor)
	expectCode(t, err, apperrors.CodePermissionDenied)

	_, err = h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, otherActor)
	expectCode(t, err, apperrors.CodeValidation)
	if _, ok := h.platform.MemberAccess(ticket.ChannelID, otherActor.UserID); ok {
		t.Fatalf("non-staff assignee was granted access")
	}

	_, err = h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, domain.Actor{})
	expectCode(t, err, apperrors.CodeValidation)

	// An administrator counts as staff without a support role.
	if _, err := h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, adminActor); err != nil {
		t.Fatalf("assign admin: %v", err)
	}
}

func TestAssignOtherTenantLooksMissing(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	intruder := domain.Actor{TenantID: testOtherTenant, UserID: "u-x", Administrator: true}
	_, err := h.tickets.Assign(h.ctx, ticket.ChannelID, intruder, helperActor)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestAssignClosedTicketButNotDeleted(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	if _, err := h.tickets.Close(h.ctx, ticket.ChannelID, staffActor, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, helperActor); err != nil {
		t.Fatalf("assign closed ticket: %v", err)
	}

	if err := h.tickets.Delete(h.ctx, ticket.ChannelID, staffActor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, adminActor)
	expectCode(t, err, apperrors.CodeValidation)
}

func TestAssignPlatformFailure(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.platform.Fail("member_access", errors.New("gateway down"))

	_, err := h.tickets.Assign(h.ctx, ticket.ChannelID, staffActor, helperActor)
	expectCode(t, err, apperrors.CodePlatformFailure)
	entries, _ := h.store.History.ListByChannel(h.ctx, ticket.ChannelID)
	for _, e := range entries {
		if e.ToStatus == domain.HistoryAssigned {
			t.Fatalf("failed assignment was recorded: %+v", e)
		}
	}
}

func TestStatsCountsByStatusAndType(t *testing.T) {
	h := newHarness(t)
	first := h.open(ownerActor)
	if _, err := h.tickets.Create(h.ctx, otherActor, domain.TicketTypeReport); err != nil {
		t.Fatalf("create report: %v", err)
	}
	if _, err := h.tickets.Close(h.ctx, first.ChannelID, staffActor, "done"); err != nil {
		t.Fatalf("close: %v", err)
	}
	foreign := &domain.Ticket{ChannelID: "c-foreign", TenantID: testOtherTenant, Type: domain.TicketTypeAppeal, Status: domain.TicketStatusOpen}
	if err := h.store.Tickets.Create(h.ctx, foreign); err != nil {
		t.Fatalf("seed foreign ticket: %v", err)
	}

	stats, err := h.tickets.Stats(h.ctx, staffActor)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("Total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[domain.TicketStatusOpen] != 1 || stats.ByStatus[domain.TicketStatusClosed] != 1 {
		t.Fatalf("ByStatus = %v", stats.ByStatus)
	}
	if stats.ByType[domain.TicketTypeSupport] != 1 || stats.ByType[domain.TicketTypeReport] != 1 || stats.ByType[domain.TicketTypeAppeal] != 0 {
		t.Fatalf("ByType = %v", stats.ByType)
	}

	_, err = h.tickets.Stats(h.ctx, ownerActor)
	expectCode(t, err, apperrors.CodePermissionDenied)

	h.store.Tickets.Fail("stats", errors.New("disk full"))
	_, err = h.tickets.Stats(h.ctx, adminActor)
	expectCode(t, err, apperrors.CodeStorageFailure)
}
