package keeper

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/pkg/beefy"
)

// VaultRecord is a vault as seen in the current pass.
// A zero LastHarvest means the registry has no record of a harvest.
type VaultRecord struct {
	Address     common.Address
	Chain       string
	TVL         decimal.Decimal
	LastHarvest time.Time
}

// RewardRecord is the expected payout of harvesting a vault, when one could be read
type RewardRecord struct {
	Address            common.Address
	EstimatedRewardUSD decimal.NullDecimal
}

// Quote is the on-chain price of one harvest call. It is only valid for the pass that produced it.
type Quote struct {
	GasUnits    uint64
	GasPriceWei *big.Int
	CostUSD     decimal.Decimal
}

// Mode tells whether a harvest was broadcast or only simulated
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeSubmitted Mode = "submitted"
)

// HarvestAction is the outcome of an accepted harvest
type HarvestAction struct {
	Vault     common.Address
	RewardUSD decimal.Decimal
	CostUSD   decimal.Decimal
	Mode      Mode
	Nonce     uint64
	GasLimit  uint64
	TxHash    string
}

// PassSummary counts what happened to the vaults of one pass
type PassSummary struct {
	StartedAt   time.Time
	Duration    time.Duration
	Vaults      int
	Rewards     int
	Evaluated   int
	Rejected    int
	Failed      int
	Harvested   int
	Duplicates  int
	Interrupted bool
}

// convertVaults converts registry vaults to domain vaults
func convertVaults(vaults []beefy.Vault) []VaultRecord {
	records := make([]VaultRecord, len(vaults))
	for i, v := range vaults {
		records[i] = VaultRecord{
			Address:     v.Address,
			Chain:       v.Chain,
			TVL:         v.TVL,
			LastHarvest: v.LastHarvest,
		}
	}
	return records
}

// convertRewards converts registry rewards to domain rewards, estimating each payout
func convertRewards(rewards []beefy.Reward) []RewardRecord {
	records := make([]RewardRecord, len(rewards))
	for i, r := range rewards {
		records[i] = RewardRecord{
			Address:            r.Address,
			EstimatedRewardUSD: EstimateRewardUSD(r.Fields),
		}
	}
	return records
}
