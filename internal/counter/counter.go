// Package counter issues per-tenant ticket sequence numbers that never
// repeat, even across restarts.
package counter

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/keylock"
)

// Store is the durable side of the counter.
type Store interface {
	GetTicketCounter(ctx context.Context, tenantID string) (int, error)
	// StoreTicketCounter must keep max(stored, value).
	StoreTicketCounter(ctx context.Context, tenantID string, value int) error
}

// Counter serializes increments per tenant and persists every value it
// hands out. A failed write is logged and the number is still returned.
type Counter struct {
	store  Store
	logger *zap.Logger
	locks  *keylock.Locker

	mu     sync.Mutex
	values map[string]int
}

// New builds a Counter over store.
func New(store Store, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		store:  store,
		logger: logger,
		locks:  keylock.New(),
		values: make(map[string]int),
	}
}

// Next returns the tenant's next sequence number.
func (c *Counter) Next(ctx context.Context, tenantID string) (int, error) {
	unlock := c.locks.Lock(tenantID)
	defer unlock()

	current, err := c.load(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	next := current + 1
	c.set(tenantID, next)

	if err := c.store.StoreTicketCounter(ctx, tenantID, next); err != nil {
		c.logger.Warn("ticket counter not persisted; continuing with in-memory value",
			zap.String("tenant_id", tenantID),
			zap.Int("value", next),
			zap.Error(err))
	}
	return next, nil
}

// Reconcile raises the counter to observedMax if it is behind and returns
// the resulting value.
func (c *Counter) Reconcile(ctx context.Context, tenantID string, observedMax int) (int, error) {
	unlock := c.locks.Lock(tenantID)
	defer unlock()

	current, err := c.load(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if observedMax > current {
		c.logger.Info("raising ticket counter to observed maximum",
			zap.String("tenant_id", tenantID),
			zap.Int("from", current),
			zap.Int("to", observedMax))
		current = observedMax
		c.set(tenantID, current)
	}
	if err := c.store.StoreTicketCounter(ctx, tenantID, current); err != nil {
		return current, err
	}
	return current, nil
}

// Current returns the last issued value without incrementing.
func (c *Counter) Current(ctx context.Context, tenantID string) (int, error) {
	unlock := c.locks.Lock(tenantID)
	defer unlock()
	return c.load(ctx, tenantID)
}

// load must be called with the tenant lock held. The durable value is read
// once; afterwards the in-memory value is authoritative for this process.
func (c *Counter) load(ctx context.Context, tenantID string) (int, error) {
	c.mu.Lock()
	v, ok := c.values[tenantID]
	c.mu.Unlock()
	if ok {
		return v, nil
	}
	stored, err := c.store.GetTicketCounter(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		stored, err = 0, nil
	}
	if err != nil {
		return 0, err
	}
	c.set(tenantID, stored)
	return stored, nil
}

func (c *Counter) set(tenantID string, v int) {
	c.mu.Lock()
	c.values[tenantID] = v
	c.mu.Unlock()
}
