package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketbot/internal/domain"
)

func TestCloseRequestsSinglePending(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now()

	first := &domain.CloseRequest{ChannelID: "c1", RequestID: "r1", RequestedBy: "staff", TicketOwner: "u1", CreatedAt: now}
	ok, err := store.CloseRequests.CreatePending(ctx, first)
	if err != nil || !ok {
		t.Fatalf("CreatePending = %v, %v", ok, err)
	}
	second := &domain.CloseRequest{ChannelID: "c1", RequestID: "r2", RequestedBy: "staff", TicketOwner: "u1", CreatedAt: now}
	ok, err = store.CloseRequests.CreatePending(ctx, second)
	if err != nil || ok {
		t.Fatalf("second CreatePending = %v, %v; want false", ok, err)
	}

	if _, err := store.CloseRequests.Resolve(ctx, "c1", "r-other", domain.CloseRequestDenied, "u1", now); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("Resolve with foreign request id = %v", err)
	}
	if _, err := store.CloseRequests.Resolve(ctx, "c1", "", domain.CloseRequestDenied, "u1", now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ok, err = store.CloseRequests.CreatePending(ctx, second)
	if err != nil || !ok {
		t.Fatalf("CreatePending over resolved row = %v, %v", ok, err)
	}
	got, _ := store.CloseRequests.GetByChannel(ctx, "c1")
	if got.RequestID != "r2" || got.Status != domain.CloseRequestPending || got.RespondedBy != nil {
		t.Fatalf("superseded row = %+v", got)
	}
}

func TestMarkExcludedKeepsPending(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now()
	req := &domain.CloseRequest{ChannelID: "c1", RequestID: "r1", CreatedAt: now}
	if _, err := store.CloseRequests.CreatePending(ctx, req); err != nil {
		t.Fatal(err)
	}
	if err := store.CloseRequests.MarkExcluded(ctx, "g1", "c1", "staff", now); err != nil {
		t.Fatal(err)
	}
	got, _ := store.CloseRequests.GetByChannel(ctx, "c1")
	if got.Status != domain.CloseRequestPending || !got.ExcludedFromAutoClose {
		t.Fatalf("row = %+v", got)
	}

	if err := store.CloseRequests.MarkExcluded(ctx, "g1", "c2", "staff", now); err != nil {
		t.Fatal(err)
	}
	got, _ = store.CloseRequests.GetByChannel(ctx, "c2")
	if got.Status != domain.CloseRequestExcluded {
		t.Fatalf("new row status = %s", got.Status)
	}
}

func TestTicketUpdateExpectedStatus(t *testing.T) {
	ctx := context.Background()
	store := New()
	ticket := &domain.Ticket{ChannelID: "c1", TenantID: "g1", OwnerID: "u1", Status: domain.TicketStatusOpen}
	if err := store.Tickets.Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}
	ticket.Status = domain.TicketStatusClosed
	if err := store.Tickets.Update(ctx, ticket, domain.TicketStatusReopened); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("Update with stale expectation = %v", err)
	}
	if err := store.Tickets.Update(ctx, ticket, domain.TicketStatusOpen); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.Tickets.FindActiveByOwner(ctx, "g1", "u1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("closed ticket still active: %v", err)
	}
}

func TestTicketStatsCountsTenantOnly(t *testing.T) {
	ctx := context.Background()
	store := New()
	seed := []domain.Ticket{
		{ChannelID: "c1", TenantID: "g1", Type: domain.TicketTypeSupport, Status: domain.TicketStatusOpen},
		{ChannelID: "c2", TenantID: "g1", Type: domain.TicketTypeSupport, Status: domain.TicketStatusClosed},
		{ChannelID: "c3", TenantID: "g1", Type: domain.TicketTypeAppeal, Status: domain.TicketStatusClosed},
		{ChannelID: "c4", TenantID: "g2", Type: domain.TicketTypeReport, Status: domain.TicketStatusOpen},
	}
	for i := range seed {
		if err := store.Tickets.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create %s: %v", seed[i].ChannelID, err)
		}
	}

	stats, err := store.Tickets.Stats(ctx, "g1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[domain.TicketStatusOpen] != 1 || stats.ByStatus[domain.TicketStatusClosed] != 2 {
		t.Fatalf("ByStatus = %v", stats.ByStatus)
	}
	if stats.ByType[domain.TicketTypeSupport] != 2 || stats.ByType[domain.TicketTypeAppeal] != 1 || stats.ByType[domain.TicketTypeReport] != 0 {
		t.Fatalf("ByType = %v", stats.ByType)
	}

	store.Tickets.Fail("stats", errors.New("offline"))
	if _, err := store.Tickets.Stats(ctx, "g1"); err == nil {
		t.Fatalf("expected injected failure")
	}
}
