package keeper_test

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/keeper"
)

// Checksummed addresses from the EIP-55 test vectors
var (
	addrA = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	addrB = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	addrC = common.HexToAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	addrD = common.HexToAddress("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() keeper.Policy {
	return keeper.Policy{
		Networks:            []string{"polygon", "matic"},
		MaxTVL:              decimal.NewFromInt(5_000_000),
		MinIdle:             3 * time.Hour,
		MinProfitUSD:        decimal.NewFromInt(3),
		NativeTokenPriceUSD: decimal.RequireFromString("0.5"),
		GasSafetyMargin:     keeper.DefaultGasSafetyMargin,
		DryRun:              true,
	}
}

func vaultOn(chain string, tvl int64, idle time.Duration) keeper.VaultRecord {
	return keeper.VaultRecord{
		Address:     addrA,
		Chain:       chain,
		TVL:         decimal.NewFromInt(tvl),
		LastHarvest: now.Add(-idle),
	}
}

func usd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
