package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/ticketbot/internal/clock"
	"github.com/spec-kit/ticketbot/internal/config"
	"github.com/spec-kit/ticketbot/internal/counter"
	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/events"
	"github.com/spec-kit/ticketbot/internal/observability"
	"github.com/spec-kit/ticketbot/internal/platform"
	"github.com/spec-kit/ticketbot/internal/repository/memory"
	"github.com/spec-kit/ticketbot/internal/scheduler"
	"github.com/spec-kit/ticketbot/internal/transcript"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

const (
	testTenant      = "g1"
	testOtherTenant = "g2"
	testCategory    = "cat-1"
	testPanel       = "panel-1"
	testTranscripts = "transcripts-1"
	testErrorLog    = "errors-1"
	testSupportRole = "role-support"
)

var (
	ownerActor = domain.Actor{TenantID: testTenant, UserID: "u-alice", UserName: "Alice"}
	otherActor = domain.Actor{TenantID: testTenant, UserID: "u-bob", UserName: "Bob"}
	staffActor = domain.Actor{TenantID: testTenant, UserID: "u-staff", UserName: "Sam", RoleIDs: []string{testSupportRole}}
	adminActor = domain.Actor{TenantID: testTenant, UserID: "u-admin", UserName: "Ada", Administrator: true}
)

type harness struct {
	t          *testing.T
	ctx        context.Context
	clock      *clock.FakeClock
	store      *memory.Store
	platform   *platform.Memory
	metrics    *observability.Metrics
	workflow   config.WorkflowConfig
	scheduler  *scheduler.Scheduler
	dispatcher events.Dispatcher
	tenants    *TenantService
	counter    *counter.Counter
	oplog      *OperatorLog
	tickets    *TicketService
	requests   *CloseRequestService
}

// newHarness wires every service over in-memory stores and a configured
// tenant.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		store:    memory.New(),
		platform: platform.NewMemory(),
		metrics:  observability.NewMetrics(),
		workflow: config.WorkflowConfig{
			DeleteGrace:            10 * time.Second,
			AutoCloseDeleteDelay:   30 * time.Second,
			TranscriptHistoryLimit: 100,
			TranscriptDir:          t.TempDir(),
			MaxTimeoutHours:        720,
		},
	}
	h.platform.AddChannel(platform.Channel{ID: testTranscripts, TenantID: testTenant, Name: "transcripts"})
	h.platform.AddChannel(platform.Channel{ID: testErrorLog, TenantID: testTenant, Name: "ticket-errors"})
	h.wire()

	cfg := domain.NewTenantConfig(testTenant)
	cfg.CategoryID = testCategory
	cfg.PanelChannelID = testPanel
	cfg.TranscriptChannelID = testTranscripts
	cfg.ErrorLogChannelID = testErrorLog
	cfg.SupportRoleIDs = []string{testSupportRole}
	if _, err := h.tenants.Save(h.ctx, adminActor, cfg); err != nil {
		t.Fatalf("save tenant config: %v", err)
	}
	return h
}

// wire builds the services over the harness stores, as a process start
// would.
func (h *harness) wire() {
	h.scheduler = scheduler.New(h.clock, nil)
	h.dispatcher = events.NewInMemoryDispatcher(nil)
	h.tenants = NewTenantService(TenantDependencies{Repo: h.store.Tenants, Clock: h.clock})
	h.counter = counter.New(h.store.Tenants, nil)
	h.oplog = NewOperatorLog(h.platform, h.tenants, h.metrics, nil)
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:       h.store.Tickets,
		HistoryRepo:      h.store.History,
		CloseRequestRepo: h.store.CloseRequests,
		Tenants:          h.tenants,
		Counter:          h.counter,
		Platform:         h.platform,
		Renderer:         transcript.NewFileRenderer(h.workflow.TranscriptDir, h.clock.Now),
		Scheduler:        h.scheduler,
		Dispatcher:       h.dispatcher,
		OperatorLog:      h.oplog,
		Metrics:          h.metrics,
		Clock:            h.clock,
		Workflow:         h.workflow,
	})
	h.requests = NewCloseRequestService(CloseRequestDependencies{
		CloseRequestRepo: h.store.CloseRequests,
		ExclusionRepo:    h.store.Exclusions,
		HistoryRepo:      h.store.History,
		Tickets:          h.tickets,
		Tenants:          h.tenants,
		Scheduler:        h.scheduler,
		Dispatcher:       h.dispatcher,
		OperatorLog:      h.oplog,
		Metrics:          h.metrics,
		Clock:            h.clock,
		Workflow:         h.workflow,
	})
	NewNotificationService(h.dispatcher, h.platform, h.requests, nil).RegisterHandlers()
}

// restart drops the scheduler and in-process state and rebuilds the services
// over the same stores.
func (h *harness) restart() {
	h.scheduler.Stop()
	h.wire()
}

func (h *harness) open(actor domain.Actor) *domain.Ticket {
	h.t.Helper()
	ticket, err := h.tickets.Create(h.ctx, actor, domain.TicketTypeSupport)
	if err != nil {
		h.t.Fatalf("create ticket for %s: %v", actor.UserID, err)
	}
	return ticket
}

func (h *harness) status(channelID string) domain.TicketStatus {
	h.t.Helper()
	ticket, err := h.store.Tickets.GetByChannel(h.ctx, channelID)
	if err != nil {
		h.t.Fatalf("load ticket %s: %v", channelID, err)
	}
	return ticket.Status
}

func (h *harness) request(channelID string, timeoutHours *int) *RequestResult {
	h.t.Helper()
	res, err := h.requests.Request(h.ctx, channelID, staffActor, "resolved", timeoutHours)
	if err != nil {
		h.t.Fatalf("request close: %v", err)
	}
	return res
}

func hours(n int) *int { return &n }

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
