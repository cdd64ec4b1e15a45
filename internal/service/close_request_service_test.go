package service

import (
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/platform"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

func (h *harness) closeRequest(channelID string) *domain.CloseRequest {
	h.t.Helper()
	req, err := h.store.CloseRequests.GetByChannel(h.ctx, channelID)
	if err != nil {
		h.t.Fatalf("load close request: %v", err)
	}
	return req
}

func TestConfirmBeforeTimeoutClosesOnce(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	res := h.request(ticket.ChannelID, hours(1))
	if _, _, ok := h.scheduler.Pending(ticket.ChannelID); !ok {
		t.Fatalf("timeout not armed")
	}

	h.clock.Advance(10 * time.Minute)
	if err := h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.status(ticket.ChannelID) != domain.TicketStatusClosed {
		t.Fatalf("ticket not closed after confirm")
	}
	if h.scheduler.Len() != 0 {
		t.Fatalf("timeout still armed after confirm")
	}

	h.clock.Advance(time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusClosed {
		t.Fatalf("ticket status changed after the original deadline")
	}
	req := h.closeRequest(ticket.ChannelID)
	if req.Status != domain.CloseRequestConfirmed || req.RequestID != res.Request.RequestID {
		t.Fatalf("unexpected close request %+v", req)
	}
	snap := h.metrics.Snapshot()
	if snap.Transitions["OPEN->CLOSED"] != 1 || snap.Transitions["OPEN->AUTO_CLOSED"] != 0 {
		t.Fatalf("unexpected transitions %v", snap.Transitions)
	}
	if snap.TimersFired != 0 {
		t.Fatalf("timer fired after confirm")
	}
	if !h.platform.Exists(ticket.ChannelID) {
		t.Fatalf("confirmed close must not remove the channel")
	}
}

func TestTimeoutAutoClosesAndRemovesChannel(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(2))

	h.clock.Advance(2*time.Hour - time.Second)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("ticket closed before the deadline")
	}

	h.clock.Advance(time.Second)
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("ticket not auto-closed, status %s", h.status(ticket.ChannelID))
	}
	if req := h.closeRequest(ticket.ChannelID); req.Status != domain.CloseRequestAutoClosed {
		t.Fatalf("close request status = %s", req.Status)
	}
	if access, _ := h.platform.MemberAccess(ticket.ChannelID, ownerActor.UserID); access != platform.AccessOwnerRead {
		t.Fatalf("owner should be read-only, got %+v", access)
	}
	msgs := h.platform.Messages(ticket.ChannelID)
	var sawNotice bool
	for _, m := range msgs {
		if strings.Contains(m.Content, "closed automatically") {
			sawNotice = true
		}
	}
	if !sawNotice {
		t.Fatalf("auto-close notice missing")
	}

	h.clock.Advance(29 * time.Second)
	if !h.platform.Exists(ticket.ChannelID) {
		t.Fatalf("channel removed too early")
	}
	h.clock.Advance(time.Second)
	if h.platform.Exists(ticket.ChannelID) {
		t.Fatalf("channel not removed after auto-close")
	}
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("auto-closed ticket should keep its status")
	}
	if got := h.metrics.Snapshot().TimersFired; got != 1 {
		t.Fatalf("timers fired = %d", got)
	}

	entries, _ := h.store.History.ListByChannel(h.ctx, ticket.ChannelID)
	var timedOut int
	for _, e := range entries {
		if e.ToStatus == domain.HistoryAutoClosed {
			timedOut++
		}
	}
	if timedOut != 1 {
		t.Fatalf("expected one timeout history entry, got %d", timedOut)
	}
}

func TestDuplicateRequestRejected(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	first := h.request(ticket.ChannelID, nil)

	_, err := h.requests.Request(h.ctx, ticket.ChannelID, adminActor, "again", hours(3))
	expectCode(t, err, apperrors.CodeDuplicateRequest)
	if h.scheduler.Len() != 0 {
		t.Fatalf("rejected request must not arm a timer")
	}

	if err := h.requests.Deny(h.ctx, ticket.ChannelID, ownerActor); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("deny must leave the ticket open")
	}
	second := h.request(ticket.ChannelID, nil)
	if second.Request.RequestID == first.Request.RequestID {
		t.Fatalf("new request should get a new id")
	}
}

func TestConcurrentRequestsCreateOne(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.requests.Request(h.ctx, ticket.ChannelID, staffActor, "", hours(4))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.HasCode(err, apperrors.CodeDuplicateRequest):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicates != 9 {
		t.Fatalf("created=%d duplicates=%d", created, duplicates)
	}
	if h.scheduler.Len() != 1 {
		t.Fatalf("expected one armed timer, got %d", h.scheduler.Len())
	}
}

func TestOnlyOwnerMayRespond(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))

	for _, actor := range []domain.Actor{staffActor, adminActor, otherActor} {
		expectCode(t, h.requests.Confirm(h.ctx, ticket.ChannelID, actor), apperrors.CodeNotOwner)
		expectCode(t, h.requests.Deny(h.ctx, ticket.ChannelID, actor), apperrors.CodeNotOwner)
	}
	if req := h.closeRequest(ticket.ChannelID); req.Status != domain.CloseRequestPending {
		t.Fatalf("request resolved by a non-owner: %s", req.Status)
	}
	if h.scheduler.Len() != 1 {
		t.Fatalf("timer disarmed by a non-owner")
	}
}

func TestRespondWithoutPendingRequest(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	expectCode(t, h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor), apperrors.CodeNoPendingRequest)
	expectCode(t, h.requests.Deny(h.ctx, ticket.ChannelID, ownerActor), apperrors.CodeNoPendingRequest)

	h.request(ticket.ChannelID, nil)
	if err := h.requests.Deny(h.ctx, ticket.ChannelID, ownerActor); err != nil {
		t.Fatalf("deny: %v", err)
	}
	expectCode(t, h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor), apperrors.CodeNoPendingRequest)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	_, err := h.requests.Request(h.ctx, ticket.ChannelID, ownerActor, "", nil)
	expectCode(t, err, apperrors.CodePermissionDenied)

	for _, n := range []int{0, -1, 721} {
		_, err = h.requests.Request(h.ctx, ticket.ChannelID, staffActor, "", hours(n))
		expectCode(t, err, apperrors.CodeValidation)
	}

	if _, err := h.tickets.Close(h.ctx, ticket.ChannelID, staffActor, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = h.requests.Request(h.ctx, ticket.ChannelID, staffActor, "", nil)
	expectCode(t, err, apperrors.CodeInvalidTransition)
}

func TestStaleTimeoutIsIgnored(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	first := h.request(ticket.ChannelID, hours(1))
	if err := h.requests.Deny(h.ctx, ticket.ChannelID, ownerActor); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if h.scheduler.Len() != 0 {
		t.Fatalf("deny must disarm the timer")
	}

	h.requests.OnTimeout(h.ctx, ticket.ChannelID, first.Request.RequestID)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("stale timeout closed the ticket")
	}

	second := h.request(ticket.ChannelID, hours(5))
	h.requests.OnTimeout(h.ctx, ticket.ChannelID, first.Request.RequestID)
	if req := h.closeRequest(ticket.ChannelID); req.Status != domain.CloseRequestPending || req.RequestID != second.Request.RequestID {
		t.Fatalf("stale timeout resolved the newer request: %+v", req)
	}

	h.clock.Advance(time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("first request's deadline closed the ticket")
	}
	h.clock.Advance(4 * time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("second request did not time out")
	}
}

func TestTimeoutAfterManualCloseIsNoop(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))
	if _, err := h.tickets.Close(h.ctx, ticket.ChannelID, staffActor, "handled"); err != nil {
		t.Fatalf("close: %v", err)
	}

	before := len(h.platform.Messages(testErrorLog))
	h.clock.Advance(time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusClosed {
		t.Fatalf("timeout overrode a manual close")
	}
	if got := len(h.platform.Messages(testErrorLog)); got != before {
		t.Fatalf("timeout on a closed ticket should not be reported as an error")
	}
	h.clock.Advance(time.Minute)
	if !h.platform.Exists(ticket.ChannelID) {
		t.Fatalf("manually closed channel should not be removed")
	}
}

func TestConfirmRacesTimeout(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	res := h.request(ticket.ChannelID, hours(1))

	var wg sync.WaitGroup
	var confirmErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		confirmErr = h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor)
	}()
	go func() {
		defer wg.Done()
		h.requests.OnTimeout(h.ctx, ticket.ChannelID, res.Request.RequestID)
	}()
	wg.Wait()

	req := h.closeRequest(ticket.ChannelID)
	status := h.status(ticket.ChannelID)
	switch req.Status {
	case domain.CloseRequestConfirmed:
		if confirmErr != nil || status != domain.TicketStatusClosed {
			t.Fatalf("confirm won but ticket is %s (err %v)", status, confirmErr)
		}
	case domain.CloseRequestAutoClosed:
		if !apperrors.HasCode(confirmErr, apperrors.CodeNoPendingRequest) || status != domain.TicketStatusAutoClosed {
			t.Fatalf("timeout won but ticket is %s (err %v)", status, confirmErr)
		}
	default:
		t.Fatalf("request left in %s", req.Status)
	}
	snap := h.metrics.Snapshot()
	if snap.Transitions["OPEN->CLOSED"]+snap.Transitions["OPEN->AUTO_CLOSED"] != 1 {
		t.Fatalf("ticket closed more than once: %v", snap.Transitions)
	}
}

func TestExcludedChannelDropsTimeout(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)

	_, err := h.requests.Exclude(h.ctx, ticket.ChannelID, ownerActor)
	expectCode(t, err, apperrors.CodePermissionDenied)

	created, err := h.requests.Exclude(h.ctx, ticket.ChannelID, staffActor)
	if err != nil || !created {
		t.Fatalf("exclude: %v, %v", created, err)
	}
	created, err = h.requests.Exclude(h.ctx, ticket.ChannelID, adminActor)
	if err != nil || created {
		t.Fatalf("second exclude should be a no-op: %v, %v", created, err)
	}

	res := h.request(ticket.ChannelID, hours(5))
	if !res.TimeoutDropped || res.Request.TimeoutHours != nil {
		t.Fatalf("timeout should be dropped: %+v", res)
	}
	if !res.Request.ExcludedFromAutoClose {
		t.Fatalf("request should record the exclusion")
	}
	if _, _, ok := h.scheduler.Pending(ticket.ChannelID); ok {
		t.Fatalf("excluded channel armed a timer")
	}
	msgs := h.platform.Messages(ticket.ChannelID)
	if last := msgs[len(msgs)-1].Content; !strings.Contains(last, "excluded from auto-close") {
		t.Fatalf("prompt should mention the exclusion: %q", last)
	}

	h.clock.Advance(6 * time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("excluded ticket auto-closed")
	}
	if err := h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.status(ticket.ChannelID) != domain.TicketStatusClosed {
		t.Fatalf("confirm on excluded ticket did not close it")
	}
}

func TestExcludeKeepsArmedTimer(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))

	if _, err := h.requests.Exclude(h.ctx, ticket.ChannelID, staffActor); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	req := h.closeRequest(ticket.ChannelID)
	if req.Status != domain.CloseRequestPending || !req.ExcludedFromAutoClose {
		t.Fatalf("unexpected request after exclude: %+v", req)
	}

	h.clock.Advance(time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("armed timer should still fire after exclusion")
	}
}

func TestPromptMessageIsAttached(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(24))

	req := h.closeRequest(ticket.ChannelID)
	if req.MessageID == nil {
		t.Fatalf("prompt message id not recorded")
	}
	msgs := h.platform.Messages(ticket.ChannelID)
	last := msgs[len(msgs)-1]
	if last.ID != *req.MessageID {
		t.Fatalf("recorded %s, prompt is %s", *req.MessageID, last.ID)
	}
	if !strings.Contains(last.Content, "**24 hour(s)**") || !strings.Contains(last.Content, "<@"+ownerActor.UserID+">") {
		t.Fatalf("unexpected prompt %q", last.Content)
	}

	pending, err := h.requests.Pending(h.ctx, ticket.ChannelID, staffActor)
	if err != nil || pending.RequestID != req.RequestID {
		t.Fatalf("pending: %+v, %v", pending, err)
	}
}

func TestRearmPendingAfterRestart(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(2))

	h.clock.Advance(time.Hour)
	h.restart()
	h.clock.Advance(30 * time.Minute)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("stopped scheduler still fired")
	}

	n, err := h.requests.RearmPending(h.ctx)
	if err != nil || n != 1 {
		t.Fatalf("rearm: %d, %v", n, err)
	}
	_, fireAt, ok := h.scheduler.Pending(ticket.ChannelID)
	if !ok || !fireAt.Equal(ticket.CreatedAt.Add(2*time.Hour)) {
		t.Fatalf("timer should keep the original deadline, got %v (%v)", fireAt, ok)
	}

	h.clock.Advance(29 * time.Minute)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("re-armed timer fired early")
	}
	h.clock.Advance(time.Minute)
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("re-armed timer did not fire")
	}
}

func TestRearmPendingFiresOverdueImmediately(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))

	h.restart()
	h.clock.Advance(3 * time.Hour)

	if _, err := h.requests.RearmPending(h.ctx); err != nil {
		t.Fatalf("rearm: %v", err)
	}
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("overdue request should auto-close on re-arm")
	}
}

func TestManualCloseWithdrawsPendingRequest(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))

	if _, err := h.tickets.Close(h.ctx, ticket.ChannelID, staffActor, "handled in voice"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := h.closeRequest(ticket.ChannelID).Status; got != domain.CloseRequestWithdrawn {
		t.Fatalf("close request status = %s, want WITHDRAWN", got)
	}
	if h.scheduler.Len() != 0 {
		t.Fatalf("timer still armed after a manual close")
	}
	expectCode(t, h.requests.Confirm(h.ctx, ticket.ChannelID, ownerActor), apperrors.CodeNoPendingRequest)

	if _, err := h.tickets.Reopen(h.ctx, ticket.ChannelID, staffActor); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second := h.request(ticket.ChannelID, hours(2))

	// The first request's deadline passes without effect.
	h.clock.Advance(time.Hour)
	h.clock.Advance(31 * time.Second)
	if h.status(ticket.ChannelID) != domain.TicketStatusOpen {
		t.Fatalf("reopened ticket was closed by an old request: %s", h.status(ticket.ChannelID))
	}
	if !h.platform.Exists(ticket.ChannelID) {
		t.Fatalf("reopened ticket channel was removed")
	}

	h.clock.Advance(time.Hour)
	if h.status(ticket.ChannelID) != domain.TicketStatusAutoClosed {
		t.Fatalf("second request did not auto-close, status %s", h.status(ticket.ChannelID))
	}
	if got := h.closeRequest(ticket.ChannelID); got.RequestID != second.Request.RequestID || got.Status != domain.CloseRequestAutoClosed {
		t.Fatalf("unexpected request %+v", got)
	}

	entries, _ := h.store.History.ListByChannel(h.ctx, ticket.ChannelID)
	withdrawn := 0
	for _, e := range entries {
		if e.ToStatus == domain.HistoryCloseWithdrawn {
			withdrawn++
		}
	}
	if withdrawn != 1 {
		t.Fatalf("expected one withdrawn entry, got %d", withdrawn)
	}
}

func TestDeleteWithdrawsPendingRequest(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, hours(1))

	if err := h.tickets.Delete(h.ctx, ticket.ChannelID, staffActor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := h.closeRequest(ticket.ChannelID).Status; got != domain.CloseRequestWithdrawn {
		t.Fatalf("close request status = %s, want WITHDRAWN", got)
	}
	if _, _, ok := h.scheduler.Pending(ticket.ChannelID); ok {
		t.Fatalf("timer still armed after delete")
	}
}

func TestReopenWithdrawsLeftoverRequest(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	if _, err := h.tickets.Close(h.ctx, ticket.ChannelID, staffActor, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	// A request stored after the close, as a request racing the close would.
	created, err := h.store.CloseRequests.CreatePending(h.ctx, &domain.CloseRequest{
		ChannelID:   ticket.ChannelID,
		RequestID:   "late-request",
		TenantID:    testTenant,
		RequestedBy: staffActor.UserID,
		TicketOwner: ownerActor.UserID,
		Status:      domain.CloseRequestPending,
		CreatedAt:   h.clock.Now(),
	})
	if err != nil || !created {
		t.Fatalf("seed pending request: %v %v", created, err)
	}

	if _, err := h.tickets.Reopen(h.ctx, ticket.ChannelID, staffActor); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := h.closeRequest(ticket.ChannelID).Status; got != domain.CloseRequestWithdrawn {
		t.Fatalf("leftover request status = %s, want WITHDRAWN", got)
	}
	h.request(ticket.ChannelID, nil)
}

func TestNewerRequestKeepsItsTimer(t *testing.T) {
	h := newHarness(t)
	for round := 0; round < 20; round++ {
		ticket := h.open(ownerActor)
		channelID := ticket.ChannelID

		var wg sync.WaitGroup
		var requestErr, denyErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, requestErr = h.requests.Request(h.ctx, channelID, staffActor, "first", hours(3))
		}()
		go func() {
			defer wg.Done()
			for {
				denyErr = h.requests.Deny(h.ctx, channelID, ownerActor)
				if !apperrors.HasCode(denyErr, apperrors.CodeNoPendingRequest) {
					return
				}
				runtime.Gosched()
			}
		}()
		wg.Wait()
		if requestErr != nil || denyErr != nil {
			t.Fatalf("round %d: request %v, deny %v", round, requestErr, denyErr)
		}

		second := h.request(channelID, hours(1))
		deadline, _ := second.Request.Deadline()
		if _, fireAt, ok := h.scheduler.Pending(channelID); !ok || !fireAt.Equal(deadline) {
			t.Fatalf("round %d: armed timer fires at %v (ok=%v), want %v", round, fireAt, ok, deadline)
		}
		h.clock.Advance(time.Hour)
		if h.status(channelID) != domain.TicketStatusAutoClosed {
			t.Fatalf("round %d: newer request did not auto-close", round)
		}
		h.clock.Advance(31 * time.Second)
	}
}

func TestAttachMessageIsScopedToStaff(t *testing.T) {
	h := newHarness(t)
	ticket := h.open(ownerActor)
	h.request(ticket.ChannelID, nil)

	expectCode(t, h.requests.AttachMessage(h.ctx, ticket.ChannelID, otherActor, "m-1"), apperrors.CodePermissionDenied)
	expectCode(t, h.requests.AttachMessage(h.ctx, ticket.ChannelID, ownerActor, "m-1"), apperrors.CodePermissionDenied)

	foreignAdmin := domain.Actor{TenantID: testOtherTenant, UserID: "u-foreign", Administrator: true}
	expectCode(t, h.requests.AttachMessage(h.ctx, ticket.ChannelID, foreignAdmin, "m-1"), apperrors.CodeNotFound)
	expectCode(t, h.requests.AttachMessage(h.ctx, ticket.ChannelID, staffActor, " "), apperrors.CodeValidation)

	if err := h.requests.AttachMessage(h.ctx, ticket.ChannelID, staffActor, "m-42"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if got := h.closeRequest(ticket.ChannelID).MessageID; got == nil || *got != "m-42" {
		t.Fatalf("message id = %v", got)
	}
}
