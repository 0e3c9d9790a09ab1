package keeper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/pkg/evm"
)

// weiExponent converts wei to whole native tokens (1e18 wei per token)
const weiExponent = -18

// harvestCall builds the message that invokes harvest() on vault from operator
func harvestCall(operator, vault common.Address) ethereum.CallMsg {
	return ethereum.CallMsg{
		From: operator,
		To:   &vault,
		Data: evm.HarvestCalldata(),
	}
}

// EstimateCost prices a harvest of vault in USD: the node estimates the gas the
// call would burn, then the current gas price converts it into native tokens.
func EstimateCost(ctx context.Context, chain Chain, operator, vault common.Address, nativeTokenPriceUSD decimal.Decimal) (Quote, error) {
	gas, err := chain.EstimateGas(ctx, harvestCall(operator, vault))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: estimate: %w", ErrGasEstimationFailed, err)
	}

	price, err := chain.SuggestGasPrice(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: gas price: %w", ErrGasEstimationFailed, err)
	}

	return Quote{
		GasUnits:    gas,
		GasPriceWei: price,
		CostUSD:     CostUSD(gas, price, nativeTokenPriceUSD),
	}, nil
}

// CostUSD computes gasUnits * gasPriceWei / 1e18 * nativeTokenPriceUSD without rounding
func CostUSD(gasUnits uint64, gasPriceWei *big.Int, nativeTokenPriceUSD decimal.Decimal) decimal.Decimal {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), gasPriceWei)
	return decimal.NewFromBigInt(wei, weiExponent).Mul(nativeTokenPriceUSD)
}
