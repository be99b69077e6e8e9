package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/models"
)

// Audit actions recorded by the service.
const (
	ActionPromptCreated    = "PROMPT_CREATED"
	ActionTradeBuy         = "TRADE_BUY"
	ActionTradeSell        = "TRADE_SELL"
	ActionBreedingExecuted = "BREEDING_EXECUTED"
)

// Auditor writes best-effort audit records. A failed write is logged and
// swallowed; auditing must never fail the operation it describes.
type Auditor struct {
	store data.AuditStore
	log   *slog.Logger
}

func NewAuditor(store data.AuditStore, log *slog.Logger) *Auditor {
	return &Auditor{store: store, log: log}
}

// Record stores an audit entry for a completed action.
func (a *Auditor) Record(ctx context.Context, action, actorID, resource, origin string, details map[string]any) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		ActorID:   actorID,
		Resource:  resource,
		Origin:    origin,
		Details:   details,
		Success:   true,
		CreatedAt: time.Now(),
	}

	if err := a.store.SaveAuditEntry(ctx, entry); err != nil {
		a.log.Warn("audit write failed", "action", action, "resource", resource, "err", err)
	}
}

// RecordFailure stores an audit entry for a failed action.
func (a *Auditor) RecordFailure(ctx context.Context, action, actorID, resource, origin string, cause error) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		ActorID:   actorID,
		Resource:  resource,
		Origin:    origin,
		Details:   map[string]any{"error": cause.Error()},
		Success:   false,
		CreatedAt: time.Now(),
	}

	if err := a.store.SaveAuditEntry(ctx, entry); err != nil {
		a.log.Warn("audit write failed", "action", action, "resource", resource, "err", err)
	}
}
