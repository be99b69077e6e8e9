package data

import (
	"context"
	"errors"

	"github.com/jamoran1356/promptmind/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

type PromptFilter struct {
	Category string
	Skip     int
	Take     int
}

type TradeFilter struct {
	PromptID string
	TraderID string
	Skip     int
	Take     int
}

type BreedingFilter struct {
	BreederID string
	Skip      int
	Take      int
}

// PromptStore 处理提示词资产的持久化
type PromptStore interface {
	// SavePrompt stores a new prompt
	SavePrompt(ctx context.Context, prompt *models.Prompt) error

	// GetPrompt retrieves a prompt by id, ErrNotFound when absent
	GetPrompt(ctx context.Context, id string) (*models.Prompt, error)

	// ListPrompts returns a page ordered by quality score descending, plus the total count
	ListPrompts(ctx context.Context, filter PromptFilter) ([]models.Prompt, int, error)

	// Leaderboard returns the top prompts ranked by quality weighted with usage
	Leaderboard(ctx context.Context, limit int) ([]models.Prompt, error)

	// ApplyTrade atomically bumps usage and revenue and scales the token
	// price by priceFactor (floored at zero). The single conditional update
	// serializes concurrent trades on the same prompt.
	ApplyTrade(ctx context.Context, promptID string, revenue float64, priceFactor float64) error
}

// TradeStore 处理交易记录的持久化
type TradeStore interface {
	// SaveTrade stores a trade together with its fee split
	SaveTrade(ctx context.Context, trade *models.Trade) error

	// ListTrades returns a page ordered by creation time descending, plus the total count
	ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, int, error)
}

// BreedingStore 处理繁殖事件的持久化
type BreedingStore interface {
	// SaveBreedingEvent stores a breeding event, initially without a child reference
	SaveBreedingEvent(ctx context.Context, event *models.BreedingEvent) error

	// LinkChild attaches the child prompt to an event (second commit phase)
	LinkChild(ctx context.Context, eventID, childPromptID string) error

	// LastEventByBreeder returns the breeder's most recent event, nil when none
	LastEventByBreeder(ctx context.Context, breederID string) (*models.BreedingEvent, error)

	// ListBreedingEvents returns a page ordered by creation time descending, plus the total count
	ListBreedingEvents(ctx context.Context, filter BreedingFilter) ([]models.BreedingEvent, int, error)

	// ListUnlinked returns events stuck between commit phases, for reconciliation
	ListUnlinked(ctx context.Context) ([]models.BreedingEvent, error)
}

// AuditStore 处理审计日志的持久化
type AuditStore interface {
	// SaveAuditEntry stores an audit record
	SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// Store aggregates the persistence surface used by the settlement service.
type Store interface {
	PromptStore
	TradeStore
	BreedingStore
	AuditStore
}
