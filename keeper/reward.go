package keeper

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/pkg/beefy"
)

// RewardFields lists the keys under which registries publish the USD value of a
// harvest, highest priority first
var RewardFields = []string{
	"usd",
	"pendingUsd",
	"harvestBountyUsd",
	"callRewardUsd",
	"callReward",
}

// EstimateRewardUSD extracts the expected harvest payout using RewardFields
func EstimateRewardUSD(fields map[string]json.RawMessage) decimal.NullDecimal {
	return ExtractReward(fields, RewardFields)
}

// ExtractReward returns the first field in priority order holding a non-negative
// number. An invalid value does not stop the search. The result is not valid when
// nothing usable was found.
func ExtractReward(fields map[string]json.RawMessage, priority []string) decimal.NullDecimal {
	for _, name := range priority {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		amount, err := beefy.ParseNumber(raw)
		if err != nil || amount.IsNegative() {
			continue
		}
		return decimal.NewNullDecimal(amount)
	}
	return decimal.NullDecimal{}
}

// IndexRewards builds the per-pass reward lookup. When the listing repeats an
// address the record seen last wins.
func IndexRewards(records []RewardRecord) map[common.Address]RewardRecord {
	index := make(map[common.Address]RewardRecord, len(records))
	for _, r := range records {
		index[r.Address] = r
	}
	return index
}
