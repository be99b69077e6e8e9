package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jamoran1356/promptmind/internal/models"
)

// MemoryStore is an in-process CounterStore. The mutex makes the
// check-then-act transition in Hit atomic across goroutines.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*models.RateLimitCounter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*models.RateLimitCounter),
		now:      time.Now,
	}
}

// Hit implements CounterStore.
func (s *MemoryStore) Hit(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (bool, error) {
	now := s.now()
	key := identifier + "|" + endpoint

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok {
		s.counters[key] = &models.RateLimitCounter{
			Identifier: identifier,
			Endpoint:   endpoint,
			Count:      1,
			ResetAt:    now.Add(window),
		}
		return true, nil
	}

	if !counter.ResetAt.After(now) {
		counter.Count = 1
		counter.ResetAt = now.Add(window)
		return true, nil
	}

	if counter.Count >= limit {
		return false, nil
	}

	counter.Count++
	return true, nil
}

// GetCounter implements CounterStore.
func (s *MemoryStore) GetCounter(ctx context.Context, identifier, endpoint string) (*models.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[identifier+"|"+endpoint]
	if !ok {
		return nil, nil
	}

	copied := *counter
	return &copied, nil
}
