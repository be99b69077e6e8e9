package chain

import (
	"context"

	"github.com/jamoran1356/promptmind/internal/models"
)

// TransactionExecutor defines methods for executing marketplace operations on chain
type TransactionExecutor interface {
	// ExecuteTrade settles a buy or sell on the marketplace contract and
	// returns the transaction hash
	ExecuteTrade(ctx context.Context, params *TradeParams) (string, error)

	// ExecuteBreeding mints a child token from two parents and returns the
	// child token address
	ExecuteBreeding(ctx context.Context, params *BreedingParams) (string, error)
}

// TradeParams 交易执行参数
type TradeParams struct {
	PromptID string
	Trader   string
	Action   models.TradeAction
	Amount   int
	Price    float64
}

// BreedingParams 繁殖执行参数
type BreedingParams struct {
	Parent1Address string
	Parent2Address string
	ChildName      string
	ChildSymbol    string
}
