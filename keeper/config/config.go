package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/keeper/keeper"
	"github.com/screwyprof/keeper/pkg/evm"
)

// Sentinel errors for configuration validation
var (
	ErrParse            = errors.New("failed to parse configuration")
	ErrOperatorMismatch = errors.New("operator address does not match signing key")
	ErrInvalidOperator  = errors.New("invalid operator address")
	ErrInvalidValue     = errors.New("invalid configuration value")
)

// Config holds all configuration loaded from environment variables
type Config struct {
	// Account
	PrivateKey      string `env:"KEEPER_PRIVATE_KEY,required,notEmpty,unset"`
	OperatorAddress string `env:"KEEPER_OPERATOR_ADDRESS"`

	// Chain
	RPCURL     string        `env:"KEEPER_RPC_URL" envDefault:"https://polygon-rpc.com"`
	ChainID    int64         `env:"KEEPER_CHAIN_ID" envDefault:"137"`
	RPCTimeout time.Duration `env:"KEEPER_RPC_TIMEOUT" envDefault:"15s"`

	// Registry
	RegistryURL       string        `env:"KEEPER_REGISTRY_URL" envDefault:"https://api.beefy.finance"`
	HttpClientTimeout time.Duration `env:"KEEPER_HTTP_CLIENT_TIMEOUT" envDefault:"10s"`

	// Policy
	Networks            []string        `env:"KEEPER_NETWORKS" envSeparator:"," envDefault:"polygon,matic"`
	MinProfitUSD        decimal.Decimal `env:"KEEPER_MIN_PROFIT_USD" envDefault:"3.0"`
	DryRun              bool            `env:"KEEPER_DRY_RUN" envDefault:"true"`
	NativeTokenPriceUSD decimal.Decimal `env:"KEEPER_NATIVE_TOKEN_PRICE_USD" envDefault:"0.5"`
	MaxTVLUSD           decimal.Decimal `env:"KEEPER_MAX_TVL_USD" envDefault:"5000000"`
	MinIdle             time.Duration   `env:"KEEPER_MIN_IDLE" envDefault:"3h"`
	GasSafetyMargin     uint64          `env:"KEEPER_GAS_SAFETY_MARGIN" envDefault:"20000"`

	// Scheduling
	PollInterval time.Duration `env:"KEEPER_POLL_INTERVAL" envDefault:"30s"`
	RetryBackoff time.Duration `env:"KEEPER_RETRY_BACKOFF" envDefault:"10s"`

	// Ops server; an empty port disables it
	HTTPHost string `env:"KEEPER_HTTP_HOST" envDefault:"localhost"`
	HTTPPort string `env:"KEEPER_HTTP_PORT" envDefault:"9090"`

	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"LOG_HUMAN_FRIENDLY" envDefault:"false"`

	key *ecdsa.PrivateKey
}

// Parse loads configuration from environment variables and validates it.
// Any error here must stop the process before the keeper starts.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express and derives the signing key
func (c *Config) Validate() error {
	key, err := evm.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return err
	}
	c.key = key

	derived := crypto.PubkeyToAddress(key.PublicKey)
	if c.OperatorAddress != "" {
		if !common.IsHexAddress(c.OperatorAddress) {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, c.OperatorAddress)
		}
		if common.HexToAddress(c.OperatorAddress) != derived {
			return fmt.Errorf("%w: key controls %s", ErrOperatorMismatch, derived.Hex())
		}
	}
	c.OperatorAddress = derived.Hex()

	switch {
	case c.ChainID <= 0:
		return fmt.Errorf("%w: KEEPER_CHAIN_ID must be positive", ErrInvalidValue)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: KEEPER_POLL_INTERVAL must be positive", ErrInvalidValue)
	case c.RetryBackoff <= 0:
		return fmt.Errorf("%w: KEEPER_RETRY_BACKOFF must be positive", ErrInvalidValue)
	case c.MinIdle < 0:
		return fmt.Errorf("%w: KEEPER_MIN_IDLE must not be negative", ErrInvalidValue)
	case c.MinProfitUSD.IsNegative():
		return fmt.Errorf("%w: KEEPER_MIN_PROFIT_USD must not be negative", ErrInvalidValue)
	case !c.NativeTokenPriceUSD.IsPositive():
		return fmt.Errorf("%w: KEEPER_NATIVE_TOKEN_PRICE_USD must be positive", ErrInvalidValue)
	case len(c.networks()) == 0:
		return fmt.Errorf("%w: KEEPER_NETWORKS must name at least one network", ErrInvalidValue)
	}

	return nil
}

// Key returns the signing key derived by Validate
func (c Config) Key() *ecdsa.PrivateKey {
	return c.key
}

// ChainIDBig returns the EIP-155 chain id
func (c Config) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

// Policy returns the decision settings handed to the keeper
func (c Config) Policy() keeper.Policy {
	return keeper.Policy{
		Networks:            c.networks(),
		MaxTVL:              c.MaxTVLUSD,
		MinIdle:             c.MinIdle,
		MinProfitUSD:        c.MinProfitUSD,
		NativeTokenPriceUSD: c.NativeTokenPriceUSD,
		GasSafetyMargin:     c.GasSafetyMargin,
		DryRun:              c.DryRun,
	}
}

// networks returns the trimmed, lowercased, non-empty aliases
func (c Config) networks() []string {
	out := make([]string, 0, len(c.Networks))
	for _, n := range c.Networks {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}
