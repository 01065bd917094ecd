package repository

import (
	"context"
	"sync"
	"time"
)

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryAttemptLimiter is the process-local attempt counter.
type MemoryAttemptLimiter struct {
	mu      sync.Mutex
	entries map[string]*attemptEntry
	now     func() time.Time
}

func NewMemoryAttemptLimiter() *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{
		entries: make(map[string]*attemptEntry),
		now:     time.Now,
	}
}

func (l *MemoryAttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &attemptEntry{expiresAt: now.Add(window)}
		l.entries[key] = entry
	}
	entry.count++

	// expired entries of other keys
	if len(l.entries) > 1024 {
		for k, e := range l.entries {
			if now.After(e.expiresAt) {
				delete(l.entries, k)
			}
		}
	}

	return entry.count <= limit, nil
}
