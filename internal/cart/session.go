package cart

import (
	"context"
	"sync"
)

// SessionStore persists cart snapshots between requests of one customer
// session. A missing session loads as an empty cart.
type SessionStore interface {
	LoadCart(ctx context.Context, sessionID string) (Cart, error)
	SaveCart(ctx context.Context, sessionID string, c Cart) error
	ClearCart(ctx context.Context, sessionID string) error
}

// MemorySessionStore keeps carts in process memory
type MemorySessionStore struct {
	mu    sync.RWMutex
	carts map[string]Cart
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{carts: make(map[string]Cart)}
}

func (s *MemorySessionStore) LoadCart(_ context.Context, sessionID string) (Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[sessionID]
	if !ok {
		return Cart{}, nil
	}
	return c.Clone(), nil
}

func (s *MemorySessionStore) SaveCart(_ context.Context, sessionID string, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(c) == 0 {
		delete(s.carts, sessionID)
		return nil
	}
	s.carts[sessionID] = c.Clone()
	return nil
}

func (s *MemorySessionStore) ClearCart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
