package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const BritishTimeFormat = "02.01.2006 15:04:05"

// Config represents logger configuration from environment/config
// LogLevel is a string like "debug", "info", "error";
// LogHumanFriendly toggles between text (true) and JSON (false).
type Config struct {
	LogLevel         string
	LogHumanFriendly bool
	// Output defaults to os.Stdout
	Output io.Writer
}

// ParseLevel converts a string to slog.Level, defaulting to Info on error.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewFromConfig creates a slog.Logger based on Config.
func NewFromConfig(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(BritishTimeFormat))
			}
			return a
		},
	}

	if cfg.LogHumanFriendly {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// USD renders a dollar amount with cent precision, or six places below one cent
// so that gas costs on cheap networks do not collapse to "0.00".
func USD(key string, amount decimal.Decimal) slog.Attr {
	if !amount.IsZero() && amount.Abs().LessThan(decimal.New(1, -2)) {
		return slog.String(key, amount.StringFixed(6))
	}
	return slog.String(key, amount.StringFixed(2))
}

// Address renders an account or contract address in checksummed form
func Address(key string, addr common.Address) slog.Attr {
	return slog.String(key, addr.Hex())
}
