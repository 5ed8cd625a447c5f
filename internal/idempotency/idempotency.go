package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const Header = "Idempotency-Key"

// Key returns the trimmed Idempotency-Key header of the request
func Key(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(Header))
}

// Store claims request keys so a replayed checkout maps onto the order the
// first attempt created.
type Store interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, key, orderID string, ttl time.Duration) error
	Lookup(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string) error
}

type entry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]entry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && s.now().Before(e.expiresAt) {
		return false, nil
	}
	s.keys[key] = entry{expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, orderID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = entry{orderID: orderID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return "", nil
	}
	return e.orderID, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
