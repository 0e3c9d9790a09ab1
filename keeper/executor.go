package keeper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/pkg/evm"
)

// Executor turns an accepted decision into a harvest transaction.
//
// Every transaction is built against a nonce read from the node at that moment.
// In dry-run mode the built transaction is reported and dropped: the signer and
// the broadcast path are never reached.
type Executor struct {
	chain  Chain
	signer Signer
	margin uint64
	dryRun bool
}

// NewExecutor creates an Executor for the signer's account
func NewExecutor(chain Chain, signer Signer, p Policy) *Executor {
	return &Executor{
		chain:  chain,
		signer: signer,
		margin: p.GasSafetyMargin,
		dryRun: p.DryRun,
	}
}

// Operator returns the account that pays for and signs harvests
func (e *Executor) Operator() common.Address {
	return e.signer.Address()
}

// Execute builds the harvest of vault and, unless in dry-run mode, signs and broadcasts it
func (e *Executor) Execute(ctx context.Context, vault common.Address, reward decimal.Decimal, q Quote) (HarvestAction, error) {
	tx, nonce, err := e.build(ctx, vault, q)
	if err != nil {
		return HarvestAction{}, err
	}

	action := HarvestAction{
		Vault:     vault,
		RewardUSD: reward,
		CostUSD:   q.CostUSD,
		Mode:      ModeSimulated,
		Nonce:     nonce,
		GasLimit:  tx.Gas(),
	}

	if e.dryRun {
		return action, nil
	}

	signed, err := e.signer.Sign(tx)
	if err != nil {
		return HarvestAction{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	if err := e.chain.SendTransaction(ctx, signed); err != nil {
		return HarvestAction{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	action.Mode = ModeSubmitted
	action.TxHash = signed.Hash().Hex()
	return action, nil
}

// build assembles an unsigned harvest transaction. The gas limit adds the safety
// margin to the estimate; the quoted gas price is reused as is.
func (e *Executor) build(ctx context.Context, vault common.Address, q Quote) (*types.Transaction, uint64, error) {
	nonce, err := e.chain.PendingNonceAt(ctx, e.signer.Address())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNonceUnavailable, err)
	}

	gasPrice := q.GasPriceWei
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &vault,
		Value:    new(big.Int),
		Gas:      q.GasUnits + e.margin,
		GasPrice: new(big.Int).Set(gasPrice),
		Data:     evm.HarvestCalldata(),
	})
	return tx, nonce, nil
}
