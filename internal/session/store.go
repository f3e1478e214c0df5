// Package session holds in-flight order edit sessions. Each order aggregate
// is edited by exactly one client session at a time; the store serializes
// access per order so the aggregate itself needs no locking.
package session

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/feastly/ordercore/internal/domain/order"
)

// ErrNotFound is returned when no session exists for an order ID.
var ErrNotFound = errors.New("session: order not found")

type entry struct {
	mu  sync.Mutex
	agg *order.Aggregate
}

// Store keeps order aggregates for active edit sessions. Draft-only edits
// that are never submitted are discarded with the session; no server-side
// cleanup beyond Remove is needed.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*entry)}
}

// Put registers an aggregate under its own ID, replacing any previous
// session for the same order.
func (s *Store) Put(agg *order.Aggregate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[agg.ID()] = &entry{agg: agg}
}

// With runs fn with exclusive access to the order's aggregate. The per-order
// lock enforces the single-writer model against racing HTTP retries.
func (s *Store) With(orderID string, fn func(agg *order.Aggregate) error) error {
	s.mu.RLock()
	e, ok := s.orders[orderID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.agg)
}

// Remove drops the session for an order, discarding any draft-only state.
func (s *Store) Remove(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
