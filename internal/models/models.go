package models

import "time"

// TradeAction is the direction of a trade.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// Status tracks the lifecycle of a settled record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Prompt is a tokenized, quality-scored prompt asset.
//
// Identity fields are immutable after creation; TokenPrice, TotalUsage and
// TotalRevenue are mutated only by confirmed trades.
type Prompt struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	CreatorID       string    `json:"creatorId"`
	QualityScore    int       `json:"qualityScore"` // 0-100, set by the evaluator at creation
	TokenPrice      float64   `json:"tokenPrice"`
	TotalUsage      int64     `json:"totalUsage"`
	TotalRevenue    float64   `json:"totalRevenue"`
	IsHybrid        bool      `json:"isHybrid"`
	ParentID1       string    `json:"parentId1,omitempty"`
	ParentID2       string    `json:"parentId2,omitempty"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Trade is a confirmed buy or sell of prompt tokens, created atomically with
// its fee split. Immutable once status is confirmed.
type Trade struct {
	ID           string      `json:"id"`
	PromptID     string      `json:"promptId"`
	TraderID     string      `json:"traderId"`
	Action       TradeAction `json:"action"`
	Amount       int         `json:"amount"` // 1-100 tokens
	Price        float64     `json:"price"`  // unit price, >= 0.01
	Total        float64     `json:"total"`
	CreatorFee   float64     `json:"creatorFee"`
	ProtocolFee  float64     `json:"protocolFee"`
	ValidatorFee float64     `json:"validatorFee"`
	TxHash       string      `json:"txHash"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// BreedingEvent records the combination of two parent prompts into a child.
//
// ChildPromptID is empty between the two commit phases: the event row is
// written first, the child prompt second, then the event is linked. An event
// that stays unlinked marks an incomplete breeding awaiting reconciliation.
type BreedingEvent struct {
	ID               string    `json:"id"`
	Parent1ID        string    `json:"parent1Id"`
	Parent2ID        string    `json:"parent2Id"`
	BreederID        string    `json:"breederId"`
	ChildPromptID    string    `json:"childPromptId,omitempty"`
	ChildTitle       string    `json:"childTitle"`
	ChildDescription string    `json:"childDescription"`
	ChildQuality     int       `json:"childQuality"`
	TxHash           string    `json:"txHash"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

// RateLimitCounter is a fixed-window request counter keyed by
// (identifier, endpoint). It is never deleted; an expired window is
// overwritten by the first request after ResetAt.
type RateLimitCounter struct {
	Identifier string    `json:"identifier"`
	Endpoint   string    `json:"endpoint"`
	Count      int       `json:"count"`
	ResetAt    time.Time `json:"resetAt"`
}

// AuditEntry is a best-effort record of a completed API action.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actorId,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Origin    string         `json:"origin"`
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	CreatedAt time.Time      `json:"createdAt"`
}
