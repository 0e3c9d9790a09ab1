package keeper

import "github.com/shopspring/decimal"

// Decision is the accept or reject verdict for one vault
type Decision struct {
	Accepted bool
	Reason   Reason
}

var accept = Decision{Accepted: true}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}

// Screen applies every rule that needs no chain access: eligibility, presence of a
// reward estimate and the minimum profit threshold. Only screened-in vaults are
// worth a gas estimate.
func Screen(e Eligibility, reward decimal.NullDecimal, p Policy) Decision {
	if !e.Eligible {
		return reject(e.Reason)
	}
	if !reward.Valid {
		return reject(ReasonNoRewardData)
	}
	if reward.Decimal.LessThan(p.MinProfitUSD) {
		return reject(ReasonRewardBelowMin)
	}
	return accept
}

// Decide accepts a harvest when the vault is eligible, the reward reaches the
// threshold and the gas cost does not exceed the reward. All amounts are USD.
func Decide(e Eligibility, reward decimal.NullDecimal, q Quote, p Policy) Decision {
	if d := Screen(e, reward, p); !d.Accepted {
		return d
	}
	if q.CostUSD.GreaterThan(reward.Decimal) {
		return reject(ReasonUnprofitable)
	}
	return accept
}
