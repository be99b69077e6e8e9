package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jamoran1356/promptmind/internal/ai"
	"github.com/jamoran1356/promptmind/internal/audit"
	"github.com/jamoran1356/promptmind/internal/chain"
	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/market"
	"github.com/jamoran1356/promptmind/internal/models"
)

// ErrExecutionFailed marks a transaction executor failure. The settlement is
// aborted: no trade or breeding record is ever persisted without a
// transaction reference.
var ErrExecutionFailed = errors.New("transaction execution failed")

// Service settles prompt creation, trades and breedings: it runs the quality
// gate, computes the economic outputs, invokes the chain executor exactly
// once per accepted request, persists the result, and emits an audit record.
type Service struct {
	store     data.Store
	evaluator ai.Evaluator
	executor  chain.TransactionExecutor
	gate      *market.QualityGate
	auditor   *audit.Auditor
	log       *slog.Logger
	now       func() time.Time
}

func NewService(
	store data.Store,
	evaluator ai.Evaluator,
	executor chain.TransactionExecutor,
	auditor *audit.Auditor,
	log *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
		executor:  executor,
		gate:      market.NewQualityGate(),
		auditor:   auditor,
		log:       log,
		now:       time.Now,
	}
}

type CreatePromptRequest struct {
	Title       string
	Description string
	Category    string
	CreatorID   string
	Origin      string
}

type TradeRequest struct {
	PromptID string
	TraderID string
	Action   models.TradeAction
	Amount   int
	Price    float64
	Origin   string
}

type BreedRequest struct {
	Parent1ID   string
	Parent2ID   string
	BreederID   string
	ChildName   string
	ChildSymbol string
	Origin      string
}

type BreedingResult struct {
	Event *models.BreedingEvent
	Child *models.Prompt
}

// CreatePrompt evaluates and stores a new prompt. Evaluator failures degrade
// to the default verdict instead of failing the request.
func (s *Service) CreatePrompt(ctx context.Context, req CreatePromptRequest) (*models.Prompt, *ai.PromptEvaluation, error) {
	evaluation, err := s.evaluator.EvaluatePrompt(ctx, req.Title, req.Description)
	if err != nil {
		s.log.Warn("prompt evaluation failed, using default", "title", req.Title, "err", err)
		evaluation = ai.DefaultEvaluation()
	}

	now := s.now()
	prompt := &models.Prompt{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		CreatorID:    req.CreatorID,
		QualityScore: evaluation.Score,
		TokenPrice:   market.InitialPrice(evaluation.Score),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.SavePrompt(ctx, prompt); err != nil {
		return nil, nil, fmt.Errorf("failed to store prompt: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionPromptCreated, req.CreatorID, prompt.ID, req.Origin, nil)

	return prompt, evaluation, nil
}

// ExecuteTrade settles a buy or sell of prompt tokens.
func (s *Service) ExecuteTrade(ctx context.Context, req TradeRequest) (*models.Trade, error) {
	prompt, err := s.store.GetPrompt(ctx, req.PromptID)
	if err != nil {
		return nil, err
	}

	if violation := s.gate.CanTrade(prompt, req.Amount, req.Price); violation != nil {
		return nil, violation
	}

	total := float64(req.Amount) * req.Price
	fees := market.SplitFees(total)

	txHash, err := s.executor.ExecuteTrade(ctx, &chain.TradeParams{
		PromptID: req.PromptID,
		Trader:   req.TraderID,
		Action:   req.Action,
		Amount:   req.Amount,
		Price:    req.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	trade := &models.Trade{
		ID:           uuid.NewString(),
		PromptID:     req.PromptID,
		TraderID:     req.TraderID,
		Action:       req.Action,
		Amount:       req.Amount,
		Price:        req.Price,
		Total:        total,
		CreatorFee:   fees.Creator,
		ProtocolFee:  fees.Protocol,
		ValidatorFee: fees.Validator,
		TxHash:       txHash,
		Status:       models.StatusConfirmed,
		CreatedAt:    s.now(),
	}

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to store trade: %w", err)
	}

	if err := s.store.ApplyTrade(ctx, req.PromptID, total, market.PriceFactor(req.Action)); err != nil {
		return nil, fmt.Errorf("failed to update prompt counters: %w", err)
	}

	action := audit.ActionTradeBuy
	if req.Action == models.TradeActionSell {
		action = audit.ActionTradeSell
	}
	s.auditor.Record(ctx, action, req.TraderID, req.PromptID, req.Origin, map[string]any{
		"amount": req.Amount,
		"price":  req.Price,
		"txHash": txHash,
	})

	return trade, nil
}

// ExecuteBreeding settles a breeding request. The commit is two-phase: the
// event is stored first, then the child prompt, then the event is linked. A
// failure between phases leaves the event without a child reference; such
// events are reconciliation work, never auto-retried.
func (s *Service) ExecuteBreeding(ctx context.Context, req BreedRequest) (*BreedingResult, error) {
	parent1, parent2, err := s.fetchParents(ctx, req.Parent1ID, req.Parent2ID)
	if err != nil {
		return nil, err
	}

	lastEvent, err := s.store.LastEventByBreeder(ctx, req.BreederID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up breeding history: %w", err)
	}

	if violation := s.gate.CanBreed(parent1, parent2, lastEvent, s.now()); violation != nil {
		return nil, violation
	}

	childQuality := market.ChildQuality(parent1.QualityScore, parent2.QualityScore)

	description, err := s.evaluator.GenerateHybridDescription(ctx,
		parent1.Title, parent1.Description, parent2.Title, parent2.Description)
	if err != nil {
		s.log.Warn("hybrid description generation failed, using fallback", "err", err)
		description = ai.FallbackHybridDescription(parent1.Title, parent2.Title)
	}

	childTokenAddress, err := s.executor.ExecuteBreeding(ctx, &chain.BreedingParams{
		Parent1Address: parent1.ContractAddress,
		Parent2Address: parent2.ContractAddress,
		ChildName:      req.ChildName,
		ChildSymbol:    req.ChildSymbol,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	now := s.now()
	event := &models.BreedingEvent{
		ID:               uuid.NewString(),
		Parent1ID:        req.Parent1ID,
		Parent2ID:        req.Parent2ID,
		BreederID:        req.BreederID,
		ChildTitle:       req.ChildName,
		ChildDescription: description,
		ChildQuality:     childQuality,
		TxHash:           childTokenAddress,
		Status:           models.StatusConfirmed,
		CreatedAt:        now,
	}

	if err := s.store.SaveBreedingEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store breeding event: %w", err)
	}

	child := &models.Prompt{
		ID:              uuid.NewString(),
		Title:           req.ChildName,
		Description:     description,
		Category:        "hybrid",
		CreatorID:       req.BreederID,
		QualityScore:    childQuality,
		TokenPrice:      market.ChildPrice(childQuality),
		IsHybrid:        true,
		ParentID1:       req.Parent1ID,
		ParentID2:       req.Parent2ID,
		ContractAddress: childTokenAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.SavePrompt(ctx, child); err != nil {
		return nil, fmt.Errorf("breeding event %s left unlinked: failed to store child prompt: %w", event.ID, err)
	}

	if err := s.store.LinkChild(ctx, event.ID, child.ID); err != nil {
		return nil, fmt.Errorf("breeding event %s left unlinked: %w", event.ID, err)
	}
	event.ChildPromptID = child.ID

	s.auditor.Record(ctx, audit.ActionBreedingExecuted, req.BreederID, event.ID, req.Origin, map[string]any{
		"parent1Id":    req.Parent1ID,
		"parent2Id":    req.Parent2ID,
		"childQuality": childQuality,
	})

	return &BreedingResult{Event: event, Child: child}, nil
}

// fetchParents resolves both parents concurrently; the two lookups are
// independent reads.
func (s *Service) fetchParents(ctx context.Context, parent1ID, parent2ID string) (*models.Prompt, *models.Prompt, error) {
	type result struct {
		prompt *models.Prompt
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		prompt, err := s.store.GetPrompt(ctx, parent2ID)
		ch <- result{prompt: prompt, err: err}
	}()

	parent1, err1 := s.store.GetPrompt(ctx, parent1ID)
	second := <-ch

	if err1 != nil {
		return nil, nil, err1
	}
	if second.err != nil {
		return nil, nil, second.err
	}
	return parent1, second.prompt, nil
}
