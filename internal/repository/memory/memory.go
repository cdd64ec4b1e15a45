// Package memory implements the repository interfaces in process memory.
// It backs the dev profile and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketbot/internal/domain"
	"github.com/spec-kit/ticketbot/internal/repository"
)

// Store bundles every in-memory repository.
type Store struct {
	Tenants       *TenantConfigs
	Tickets       *Tickets
	History       *History
	CloseRequests *CloseRequests
	Exclusions    *Exclusions
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		Tenants:       &TenantConfigs{configs: map[string]*domain.TenantConfig{}, failures: failures{}},
		Tickets:       &Tickets{tickets: map[string]*domain.Ticket{}, failures: failures{}},
		History:       &History{},
		CloseRequests: &CloseRequests{rows: map[string]*domain.CloseRequest{}},
		Exclusions:    &Exclusions{rows: map[string]domain.AutoCloseExclusion{}},
	}
}

// failures lets tests make individual operations fail.
type failures map[string]error

func (f failures) check(op string) error {
	return f[op]
}

var (
	_ repository.TenantConfigRepository  = (*TenantConfigs)(nil)
	_ repository.TicketRepository        = (*Tickets)(nil)
	_ repository.TicketHistoryRepository = (*History)(nil)
	_ repository.CloseRequestRepository  = (*CloseRequests)(nil)
	_ repository.ExclusionRepository     = (*Exclusions)(nil)
)

// TenantConfigs is the in-memory TenantConfigRepository.
type TenantConfigs struct {
	mu       sync.Mutex
	configs  map[string]*domain.TenantConfig
	failures failures
}

// Fail makes op ("get", "save", "store_counter", "get_counter") return err
// until cleared with a nil err.
func (r *TenantConfigs) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *TenantConfigs) Get(_ context.Context, tenantID string) (*domain.TenantConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("get"); err != nil {
		return nil, err
	}
	cfg, ok := r.configs[tenantID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cfg.Clone(), nil
}

func (r *TenantConfigs) List(_ context.Context) ([]domain.TenantConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TenantConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, *cfg.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (r *TenantConfigs) Save(_ context.Context, cfg *domain.TenantConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("save"); err != nil {
		return err
	}
	stored := cfg.Clone()
	if prev, ok := r.configs[cfg.TenantID]; ok && prev.TicketCounter > stored.TicketCounter {
		stored.TicketCounter = prev.TicketCounter
	}
	stored.UpdatedAt = time.Now()
	r.configs[cfg.TenantID] = stored
	cfg.TicketCounter = stored.TicketCounter
	cfg.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *TenantConfigs) GetTicketCounter(_ context.Context, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("get_counter"); err != nil {
		return 0, err
	}
	cfg, ok := r.configs[tenantID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return cfg.TicketCounter, nil
}

func (r *TenantConfigs) StoreTicketCounter(_ context.Context, tenantID string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("store_counter"); err != nil {
		return err
	}
	cfg, ok := r.configs[tenantID]
	if !ok {
		cfg = domain.NewTenantConfig(tenantID)
		r.configs[tenantID] = cfg
	}
	if value > cfg.TicketCounter {
		cfg.TicketCounter = value
	}
	return nil
}

// Tickets is the in-memory TicketRepository.
type Tickets struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	failures failures
}

// Fail makes op ("create", "update", "get", "find_active") return err.
func (r *Tickets) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *Tickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("create"); err != nil {
		return err
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	cp := *ticket
	r.tickets[ticket.ChannelID] = &cp
	return nil
}

func (r *Tickets) Update(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("update"); err != nil {
		return err
	}
	stored, ok := r.tickets[ticket.ChannelID]
	if !ok || stored.Status != expected {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.ClosedAt = ticket.ClosedAt
	stored.ClosedBy = ticket.ClosedBy
	stored.CloseReason = ticket.CloseReason
	return nil
}

func (r *Tickets) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("get"); err != nil {
		return nil, err
	}
	t, ok := r.tickets[channelID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *Tickets) FindActiveByOwner(_ context.Context, tenantID, ownerID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("find_active"); err != nil {
		return nil, err
	}
	for _, t := range r.tickets {
		if t.TenantID == tenantID && t.OwnerID == ownerID && t.Active() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Tickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.TenantID != filter.TenantID {
			continue
		}
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber > out[j].SequenceNumber })
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Tickets) MaxSequence(_ context.Context, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, t := range r.tickets {
		if t.TenantID == tenantID && t.SequenceNumber > max {
			max = t.SequenceNumber
		}
	}
	return max, nil
}

func (r *Tickets) DeleteInactiveBefore(_ context.Context, tenantID string, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tickets {
		if t.TenantID != tenantID || t.Active() || t.ClosedAt == nil {
			continue
		}
		if t.ClosedAt.Before(before) {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}

func (r *Tickets) Stats(_ context.Context, tenantID string) (*domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures.check("stats"); err != nil {
		return nil, err
	}
	stats := domain.NewTicketStats()
	for _, t := range r.tickets {
		if t.TenantID == tenantID {
			stats.Add(t.Status, t.Type, 1)
		}
	}
	return stats, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// History is the in-memory TicketHistoryRepository.
type History struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *History) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = int64(len(r.entries) + 1)
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *history)
	return nil
}

func (r *History) ListByChannel(_ context.Context, channelID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.ChannelID == channelID {
			out = append(out, e)
		}
	}
	return out, nil
}

// CloseRequests is the in-memory CloseRequestRepository.
type CloseRequests struct {
	mu   sync.Mutex
	rows map[string]*domain.CloseRequest
}

func (r *CloseRequests) CreatePending(_ context.Context, req *domain.CloseRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[req.ChannelID]
	if ok && prev.Status == domain.CloseRequestPending {
		return false, nil
	}
	if ok && prev.ExcludedFromAutoClose {
		req.ExcludedFromAutoClose = true
	}
	req.Status = domain.CloseRequestPending
	req.RespondedAt, req.RespondedBy, req.MessageID = nil, nil, nil
	cp := *req
	r.rows[req.ChannelID] = &cp
	return true, nil
}

func (r *CloseRequests) GetByChannel(_ context.Context, channelID string) (*domain.CloseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[channelID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *CloseRequests) GetPending(_ context.Context, channelID string) (*domain.CloseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[channelID]
	if !ok || row.Status != domain.CloseRequestPending {
		return nil, pgx.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *CloseRequests) Resolve(_ context.Context, channelID, requestID string, status domain.CloseRequestStatus, respondedBy string, at time.Time) (*domain.CloseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[channelID]
	if !ok || row.Status != domain.CloseRequestPending {
		return nil, pgx.ErrNoRows
	}
	if requestID != "" && row.RequestID != requestID {
		return nil, pgx.ErrNoRows
	}
	row.Status = status
	row.RespondedAt = &at
	row.RespondedBy = &respondedBy
	cp := *row
	return &cp, nil
}

func (r *CloseRequests) SetMessageID(_ context.Context, channelID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[channelID]
	if !ok || row.Status != domain.CloseRequestPending {
		return pgx.ErrNoRows
	}
	row.MessageID = &messageID
	return nil
}

func (r *CloseRequests) MarkExcluded(_ context.Context, tenantID, channelID, excludedBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[channelID]
	if !ok {
		r.rows[channelID] = &domain.CloseRequest{
			ChannelID:             channelID,
			TenantID:              tenantID,
			RequestedBy:           excludedBy,
			TicketOwner:           domain.SystemActorID,
			Reason:                "Excluded from auto-close",
			Status:                domain.CloseRequestExcluded,
			CreatedAt:             at,
			ExcludedFromAutoClose: true,
		}
		return nil
	}
	row.ExcludedFromAutoClose = true
	if row.Status != domain.CloseRequestPending {
		row.Status = domain.CloseRequestExcluded
	}
	return nil
}

func (r *CloseRequests) ListPendingWithTimeout(_ context.Context) ([]domain.CloseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CloseRequest
	for _, row := range r.rows {
		if row.Status == domain.CloseRequestPending && row.TimeoutHours != nil {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CloseRequests) DeleteResolvedBefore(_ context.Context, tenantID string, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if row.TenantID != tenantID || row.Status == domain.CloseRequestPending || row.Status == domain.CloseRequestExcluded {
			continue
		}
		if row.CreatedAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// Exclusions is the in-memory ExclusionRepository.
type Exclusions struct {
	mu   sync.Mutex
	rows map[string]domain.AutoCloseExclusion
}

func (r *Exclusions) Exclude(_ context.Context, exclusion *domain.AutoCloseExclusion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.rows[exclusion.ChannelID]; ok {
		exclusion.ExcludedAt = prev.ExcludedAt
		return false, nil
	}
	r.rows[exclusion.ChannelID] = *exclusion
	return true, nil
}

func (r *Exclusions) IsExcluded(_ context.Context, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[channelID]
	return ok, nil
}
