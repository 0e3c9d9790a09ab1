package keeper

import (
	"strings"
	"time"
)

// Reason explains why a vault was not harvested
type Reason string

const (
	ReasonWrongNetwork      Reason = "wrong network"
	ReasonTVLTooLarge       Reason = "TVL too large"
	ReasonHarvestedRecently Reason = "harvested too recently"
	ReasonNoRewardData      Reason = "no-reward-data"
	ReasonRewardBelowMin    Reason = "reward-below-threshold"
	ReasonUnprofitable      Reason = "unprofitable-after-gas"
	ReasonDuplicate         Reason = "duplicate vault"
)

// Eligibility is the verdict of the local, chain-free vault rules
type Eligibility struct {
	Eligible bool
	Reason   Reason
}

var eligible = Eligibility{Eligible: true}

// Evaluate applies the network, size and cooldown rules in that order and stops
// at the first one that fails. A vault without a recorded harvest is never held
// back by the cooldown rule.
func Evaluate(v VaultRecord, p Policy, now time.Time) Eligibility {
	if !onNetwork(v.Chain, p.Networks) {
		return Eligibility{Reason: ReasonWrongNetwork}
	}

	if v.TVL.GreaterThan(p.MaxTVL) {
		return Eligibility{Reason: ReasonTVLTooLarge}
	}

	if !v.LastHarvest.IsZero() && now.Sub(v.LastHarvest) < p.MinIdle {
		return Eligibility{Reason: ReasonHarvestedRecently}
	}

	return eligible
}

func onNetwork(chain string, aliases []string) bool {
	chain = strings.ToLower(chain)
	for _, alias := range aliases {
		if alias != "" && strings.Contains(chain, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}
