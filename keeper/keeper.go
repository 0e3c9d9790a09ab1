package keeper

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/pkg/beefy"
)

// Sentinel errors for failure cases
var (
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrNonceUnavailable    = errors.New("nonce unavailable")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrUnexpectedVault     = errors.New("unexpected vault error")
)

// Default configuration values
const (
	DefaultPollInterval    = 30 * time.Second
	DefaultRetryBackoff    = 10 * time.Second
	DefaultGasSafetyMargin = uint64(20000)
)

// Registry lists vaults and their pending rewards
// ------------------------------------------------
type Registry interface {
	GetVaults(ctx context.Context) ([]beefy.Vault, error)
	GetRewards(ctx context.Context) ([]beefy.Reward, error)
}

// Chain is the read and write surface of a blockchain node
type Chain interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer signs transactions on behalf of the operator account
type Signer interface {
	Address() common.Address
	Sign(tx *types.Transaction) (*types.Transaction, error)
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Event represents a keeper lifecycle event
// -----------------------------------------
type Event any

type KeeperStarted struct {
	Operator     common.Address
	DryRun       bool
	PollInterval time.Duration
}

type PassStarted struct {
	StartedAt time.Time
	Vaults    int
	Rewards   int
}

// VaultRejected reports a vault that was evaluated and turned down.
// RewardUSD and CostUSD are zero when the stage that rejected it ran before they were known.
type VaultRejected struct {
	Vault     VaultRecord
	Reason    Reason
	RewardUSD decimal.Decimal
	CostUSD   decimal.Decimal
}

// HarvestCandidate reports a vault that passed every local rule and is about to be priced on chain
type HarvestCandidate struct {
	Vault     VaultRecord
	RewardUSD decimal.Decimal
}

type VaultFailed struct {
	Vault VaultRecord
	Err   error
}

type HarvestExecuted struct {
	Action HarvestAction
}

type PassCompleted struct {
	Summary PassSummary
}

type PassFailed struct {
	Err     error
	RetryIn time.Duration
}

type KeeperShutdown struct {
	Reason error
}
