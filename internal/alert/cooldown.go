// Package alert routes incidents to notification channels, suppressing
// repeats of the same alert key inside a cooldown window.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/governstack/govern-trust/internal/cache"
)

// CooldownStore tracks the last successful send per alert key. Acquire is an
// atomic check-and-claim: of two concurrent callers with the same key, at
// most one may observe an expired window. A claim that did not lead to a
// delivered notification must be released so the window is not consumed.
type CooldownStore interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryCooldownStore keeps cooldown state in a mutex-guarded map. It is the
// default for single-process deployments and gives each test fresh state.
type MemoryCooldownStore struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewMemoryCooldownStore constructs an empty in-memory cooldown store.
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Acquire claims the key if its window has elapsed.
func (s *MemoryCooldownStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	s.lastSent[key] = now
	return true, nil
}

// Release clears a claim whose dispatch did not reach any channel.
func (s *MemoryCooldownStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSent, key)
	return nil
}

// CacheCooldownStore backs cooldown state with a shared cache provider so
// multiple engine replicas suppress as one. Atomicity rides on SetNX with
// the window as TTL.
type CacheCooldownStore struct {
	provider cache.Provider
	prefix   string
}

// NewCacheCooldownStore constructs a store on the given provider.
func NewCacheCooldownStore(provider cache.Provider) *CacheCooldownStore {
	return &CacheCooldownStore{provider: provider, prefix: "cooldown:"}
}

// Acquire claims the key via SET-NX with the window as expiry.
func (s *CacheCooldownStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.provider.SetNX(ctx, s.prefix+key, []byte("1"), window)
}

// Release deletes the claim.
func (s *CacheCooldownStore) Release(ctx context.Context, key string) error {
	return s.provider.Del(ctx, s.prefix+key)
}
