package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jamoran1356/promptmind/internal/chain"
	"github.com/jamoran1356/promptmind/internal/models"
)

// Minimal ABI fragments for the marketplace and breeding contracts. String
// identifiers are carried as keccak hashes so arbitrary ids fit in bytes32.
const (
	marketplaceABI = `[{"name":"executeTrade","type":"function","inputs":[{"name":"promptId","type":"bytes32"},{"name":"trader","type":"bytes32"},{"name":"isBuy","type":"bool"},{"name":"amount","type":"uint256"},{"name":"priceWei","type":"uint256"}]}]`
	breedingABI    = `[{"name":"breed","type":"function","inputs":[{"name":"parent1","type":"address"},{"name":"parent2","type":"address"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}]}]`

	defaultGasLimit = 300000
)

// Client is the subset of ethclient used by the executor, extracted for
// mocking.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Executor implements chain.TransactionExecutor against an EVM chain.
type Executor struct {
	client      Client
	privateKey  *ecdsa.PrivateKey
	from        common.Address
	marketplace common.Address
	breeding    common.Address
	chainID     *big.Int

	marketABI abi.ABI
	breedABI  abi.ABI

	// serializes nonce allocation; two concurrent settlements must not
	// reuse a nonce
	mu sync.Mutex
}

// NewExecutor dials the RPC endpoint and prepares the signing key.
func NewExecutor(ctx context.Context, rpcURL, privateKeyHex, marketplaceAddr, breedingAddr string) (*Executor, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return NewExecutorWithClient(ctx, client, privateKeyHex, marketplaceAddr, breedingAddr)
}

// NewExecutorWithClient builds an executor over an existing client, mainly
// for tests.
func NewExecutorWithClient(ctx context.Context, client Client, privateKeyHex, marketplaceAddr, breedingAddr string) (*Executor, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	mABI, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse marketplace abi: %w", err)
	}
	bABI, err := abi.JSON(strings.NewReader(breedingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse breeding abi: %w", err)
	}

	return &Executor{
		client:      client,
		privateKey:  key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		marketplace: common.HexToAddress(marketplaceAddr),
		breeding:    common.HexToAddress(breedingAddr),
		chainID:     chainID,
		marketABI:   mABI,
		breedABI:    bABI,
	}, nil
}

// ExecuteTrade implements chain.TransactionExecutor
func (e *Executor) ExecuteTrade(ctx context.Context, params *chain.TradeParams) (string, error) {
	input, err := e.marketABI.Pack("executeTrade",
		crypto.Keccak256Hash([]byte(params.PromptID)),
		crypto.Keccak256Hash([]byte(params.Trader)),
		params.Action == models.TradeActionBuy,
		big.NewInt(int64(params.Amount)),
		toWei(params.Price),
	)
	if err != nil {
		return "", fmt.Errorf("failed to pack trade call: %w", err)
	}

	tx, err := e.submit(ctx, e.marketplace, input)
	if err != nil {
		return "", fmt.Errorf("failed to execute trade: %w", err)
	}

	return tx.Hash().Hex(), nil
}

// ExecuteBreeding implements chain.TransactionExecutor. The child token
// address is derived deterministically from the parents and symbol, matching
// the breeding contract's CREATE2 salt.
func (e *Executor) ExecuteBreeding(ctx context.Context, params *chain.BreedingParams) (string, error) {
	parent1 := common.HexToAddress(params.Parent1Address)
	parent2 := common.HexToAddress(params.Parent2Address)

	input, err := e.breedABI.Pack("breed", parent1, parent2, params.ChildName, params.ChildSymbol)
	if err != nil {
		return "", fmt.Errorf("failed to pack breeding call: %w", err)
	}

	if _, err := e.submit(ctx, e.breeding, input); err != nil {
		return "", fmt.Errorf("failed to execute breeding: %w", err)
	}

	salt := crypto.Keccak256(parent1.Bytes(), parent2.Bytes(), []byte(params.ChildSymbol))
	child := common.BytesToAddress(crypto.Keccak256(e.breeding.Bytes(), salt)[12:])
	return child.Hex(), nil
}

// submit signs and sends a single transaction. Each call allocates exactly
// one nonce; there is no retry here so a failed send surfaces to the caller.
func (e *Executor) submit(ctx context.Context, to common.Address, input []byte) (*types.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      defaultGasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signed, nil
}

// toWei converts a decimal token price to wei, truncating sub-wei precision.
func toWei(price float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(price), big.NewFloat(1e18)).Int(nil)
	return wei
}
