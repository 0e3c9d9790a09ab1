package keeper

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the immutable decision configuration shared by every stage of a pass
type Policy struct {
	// Networks are lowercase aliases; a vault qualifies when its chain contains any of them
	Networks            []string
	MaxTVL              decimal.Decimal
	MinIdle             time.Duration
	MinProfitUSD        decimal.Decimal
	NativeTokenPriceUSD decimal.Decimal
	GasSafetyMargin     uint64
	DryRun              bool
}
