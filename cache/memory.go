package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is an in-process TTL cache. Writes are last-writer-wins; entries
// past their TTL are never returned, even before the janitor removes them.
// Safe for concurrent use by multiple goroutines.
type Memory struct {
	mu            sync.RWMutex
	data          map[string]entry
	log           *slog.Logger
	sweepInterval time.Duration
}

func NewMemory(log *slog.Logger, sweepInterval time.Duration) *Memory {
	return &Memory{
		data:          make(map[string]entry),
		log:           log,
		sweepInterval: sweepInterval,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Sweep removes entries expired at now and reports how many were dropped.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
			dropped++
		}
	}
	return dropped
}

// Run makes Memory a supervised worker: a janitor loop that reclaims
// expired entries so the map does not grow unbounded between reads.
func (m *Memory) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if dropped := m.Sweep(now); dropped > 0 {
				m.log.Debug("cache janitor sweep", "dropped", dropped)
			}
		}
	}
}
