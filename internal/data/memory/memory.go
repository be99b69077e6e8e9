package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/models"
)

// MemoryStorage is an in-process data.Store. It backs tests and local
// development with the same semantics as the Postgres store, including
// mutex-serialized trade application.
type MemoryStorage struct {
	mu       sync.RWMutex
	prompts  map[string]*models.Prompt
	trades   []models.Trade
	breeding []models.BreedingEvent
	audits   []models.AuditEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prompts: make(map[string]*models.Prompt),
	}
}

// SavePrompt implements data.PromptStore
func (s *MemoryStorage) SavePrompt(ctx context.Context, prompt *models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *prompt
	s.prompts[prompt.ID] = &copied
	return nil
}

// GetPrompt implements data.PromptStore
func (s *MemoryStorage) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompt, ok := s.prompts[id]
	if !ok {
		return nil, data.ErrNotFound
	}

	copied := *prompt
	return &copied, nil
}

// ListPrompts implements data.PromptStore
func (s *MemoryStorage) ListPrompts(ctx context.Context, filter data.PromptFilter) ([]models.Prompt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Prompt
	for _, prompt := range s.prompts {
		if filter.Category != "" && prompt.Category != filter.Category {
			continue
		}
		matched = append(matched, *prompt)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].QualityScore > matched[j].QualityScore
	})

	return page(matched, filter.Skip, filter.Take), len(matched), nil
}

// Leaderboard implements data.PromptStore
func (s *MemoryStorage) Leaderboard(ctx context.Context, limit int) ([]models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := make([]models.Prompt, 0, len(s.prompts))
	for _, prompt := range s.prompts {
		ranked = append(ranked, *prompt)
	}

	rank := func(p models.Prompt) float64 {
		return float64(p.QualityScore) * (1 + float64(p.TotalUsage)/1000)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return rank(ranked[i]) > rank(ranked[j])
	})

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ApplyTrade implements data.PromptStore
func (s *MemoryStorage) ApplyTrade(ctx context.Context, promptID string, revenue float64, priceFactor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt, ok := s.prompts[promptID]
	if !ok {
		return data.ErrNotFound
	}

	prompt.TotalUsage++
	prompt.TotalRevenue += revenue
	prompt.TokenPrice *= priceFactor
	if prompt.TokenPrice < 0 {
		prompt.TokenPrice = 0
	}
	prompt.UpdatedAt = time.Now()
	return nil
}

// SaveTrade implements data.TradeStore
func (s *MemoryStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *trade)
	return nil
}

// ListTrades implements data.TradeStore
func (s *MemoryStorage) ListTrades(ctx context.Context, filter data.TradeFilter) ([]models.Trade, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Trade
	for _, trade := range s.trades {
		if filter.PromptID != "" && trade.PromptID != filter.PromptID {
			continue
		}
		if filter.TraderID != "" && trade.TraderID != filter.TraderID {
			continue
		}
		matched = append(matched, trade)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return page(matched, filter.Skip, filter.Take), len(matched), nil
}

// SaveBreedingEvent implements data.BreedingStore
func (s *MemoryStorage) SaveBreedingEvent(ctx context.Context, event *models.BreedingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.breeding = append(s.breeding, *event)
	return nil
}

// LinkChild implements data.BreedingStore
func (s *MemoryStorage) LinkChild(ctx context.Context, eventID, childPromptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.breeding {
		if s.breeding[i].ID == eventID {
			s.breeding[i].ChildPromptID = childPromptID
			return nil
		}
	}
	return data.ErrNotFound
}

// LastEventByBreeder implements data.BreedingStore
func (s *MemoryStorage) LastEventByBreeder(ctx context.Context, breederID string) (*models.BreedingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.BreedingEvent
	for i := range s.breeding {
		event := &s.breeding[i]
		if event.BreederID != breederID {
			continue
		}
		if last == nil || event.CreatedAt.After(last.CreatedAt) {
			last = event
		}
	}

	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

// ListBreedingEvents implements data.BreedingStore
func (s *MemoryStorage) ListBreedingEvents(ctx context.Context, filter data.BreedingFilter) ([]models.BreedingEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.BreedingEvent
	for _, event := range s.breeding {
		if filter.BreederID != "" && event.BreederID != filter.BreederID {
			continue
		}
		matched = append(matched, event)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return page(matched, filter.Skip, filter.Take), len(matched), nil
}

// ListUnlinked implements data.BreedingStore
func (s *MemoryStorage) ListUnlinked(ctx context.Context) ([]models.BreedingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unlinked []models.BreedingEvent
	for _, event := range s.breeding {
		if event.ChildPromptID == "" {
			unlinked = append(unlinked, event)
		}
	}

	sort.Slice(unlinked, func(i, j int) bool {
		return unlinked[i].CreatedAt.Before(unlinked[j].CreatedAt)
	})

	return unlinked, nil
}

// SaveAuditEntry implements data.AuditStore
func (s *MemoryStorage) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits = append(s.audits, *entry)
	return nil
}

// AuditEntries returns a snapshot of recorded audit entries, for tests.
func (s *MemoryStorage) AuditEntries() []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.AuditEntry(nil), s.audits...)
}

func page[T any](items []T, skip, take int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}
	return append([]T(nil), items...)
}
