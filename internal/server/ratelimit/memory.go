package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local Limiter. Expired keys are dropped lazily
// on access and on every Set, so no background goroutine is needed.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	expires time.Time
	count   int64
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: make(map[string]entry), now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

func (m *MemoryLimiter) Get(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.liveLocked(key, m.now()), nil
}

func (m *MemoryLimiter) Set(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	m.entries[key] = entry{expires: now.Add(ttl), count: 1}
	return nil
}

func (m *MemoryLimiter) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.liveLocked(key, now) {
		return false, nil
	}
	m.sweepLocked(now)
	m.entries[key] = entry{expires: now.Add(ttl), count: 1}
	return true, nil
}

func (m *MemoryLimiter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.liveLocked(key, now) {
		e := m.entries[key]
		e.count++
		m.entries[key] = e
		return e.count, nil
	}
	m.sweepLocked(now)
	m.entries[key] = entry{expires: now.Add(ttl), count: 1}
	return 1, nil
}

func (m *MemoryLimiter) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored markers, expired ones included.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryLimiter) liveLocked(key string, now time.Time) bool {
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if !now.Before(e.expires) {
		delete(m.entries, key)
		return false
	}
	return true
}

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
