package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spec-kit/ticketbot/internal/domain"
)

func TestMemoryCreateAppliesOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ch, err := m.CreateChannel(ctx, ChannelSpec{
		TenantID:   "g1",
		CategoryID: "cat",
		Name:       "ticket-alice-001",
		Overwrites: []Overwrite{
			PublicOverwrite("g1"),
			{Kind: TargetMember, TargetID: "u1", Access: AccessOwner},
			{Kind: TargetRole, TargetID: "support", Access: AccessStaff},
		},
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if a, _ := m.MemberAccess(ch.ID, "u1"); a != AccessOwner {
		t.Fatalf("owner access = %+v", a)
	}
	if a, _ := m.RoleAccess(ch.ID, "g1"); a != AccessDenied {
		t.Fatalf("public access = %+v", a)
	}
	chans, _ := m.ListChannels(ctx, "g1", "cat")
	if len(chans) != 1 || chans[0].Name != "ticket-alice-001" {
		t.Fatalf("ListChannels = %+v", chans)
	}
}

func TestMemoryRecentMessagesKeepsNewest(t *testing.T) {
	m := NewMemory()
	m.AddChannel(Channel{ID: "c", TenantID: "g1"})
	for i := 0; i < 5; i++ {
		m.AddMessage("c", domain.Message{AuthorID: "u", Content: fmt.Sprint(i)})
	}
	msgs, err := m.RecentMessages(context.Background(), "c", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Content != "2" || msgs[2].Content != "4" {
		t.Fatalf("RecentMessages = %+v", msgs)
	}
}

func TestMemoryDeleteAndFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.AddChannel(Channel{ID: "c", TenantID: "g1"})

	m.Fail("delete", errors.New("boom"))
	if err := m.DeleteChannel(ctx, "c", "x"); err == nil {
		t.Fatalf("expected injected failure")
	}
	m.Fail("delete", nil)
	if err := m.DeleteChannel(ctx, "c", "x"); err != nil {
		t.Fatal(err)
	}
	if m.Exists("c") {
		t.Fatalf("channel still present")
	}
	if err := m.DeleteChannel(ctx, "c", "x"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}
