package beefy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Sentinel errors for registry requests
var (
	ErrCreateRequest    = errors.New("creating request")
	ErrRequestFailed    = errors.New("making request")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrDecodeResponse   = errors.New("decoding response")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidNumber    = errors.New("invalid number")
)

const (
	vaultsPath   = "/vaults"
	earningsPath = "/earnings"
)

// Accepted magnitude of registry numbers. Values outside it are treated as malformed.
const (
	maxExponent        = 30
	minExponent        = -40
	maxCoefficientBits = 256
)

// Field aliases seen across registry record shapes, in priority order
var (
	addressFields = []string{"vault", "address", "vaultAddress"}
	chainFields   = []string{"chain", "network"}
)

// Client represents a vault registry API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithLogger reports records dropped during normalization
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a registry client. The http.Client timeout bounds every call.
func NewClient(httpClient *http.Client, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Vault is a vault listing entry with its address already normalized.
// LastHarvest is the zero time when the registry has no record of a harvest.
type Vault struct {
	Address     common.Address
	Chain       string
	TVL         decimal.Decimal
	LastHarvest time.Time
}

// Reward is a pending-reward entry. Fields holds every raw value of the record
// because reward amounts are published under several different keys.
type Reward struct {
	Address common.Address
	Fields  map[string]json.RawMessage
}

// GetVaults retrieves the vault listing. Records without a usable address or
// with malformed numbers are dropped.
func (c *Client) GetVaults(ctx context.Context) ([]Vault, error) {
	records, err := c.getRecords(ctx, vaultsPath)
	if err != nil {
		return nil, err
	}

	vaults := make([]Vault, 0, len(records))
	for i, rec := range records {
		v, err := parseVault(rec)
		if err != nil {
			c.dropped(ctx, vaultsPath, i, err)
			continue
		}
		vaults = append(vaults, v)
	}
	c.summarize(ctx, vaultsPath, len(records), len(vaults))
	return vaults, nil
}

// GetRewards retrieves the pending-reward listing. Records without a usable address are dropped.
func (c *Client) GetRewards(ctx context.Context) ([]Reward, error) {
	records, err := c.getRecords(ctx, earningsPath)
	if err != nil {
		return nil, err
	}

	rewards := make([]Reward, 0, len(records))
	for i, rec := range records {
		addr, err := NormalizeAddress(firstString(rec, addressFields...))
		if err != nil {
			c.dropped(ctx, earningsPath, i, err)
			continue
		}
		rewards = append(rewards, Reward{Address: addr, Fields: rec})
	}
	c.summarize(ctx, earningsPath, len(records), len(rewards))
	return rewards, nil
}

// NormalizeAddress parses a hex address in any letter case, with or without the
// 0x prefix. The result prints in EIP-55 checksummed form via Hex().
func NormalizeAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseNumber decodes a JSON number or a numeric string
func ParseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, fmt.Errorf("%w: empty", ErrInvalidNumber)
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
		}
		text = strings.TrimSpace(text)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}

	// comparisons rescale through big.Int, so huge exponents never finish
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent || d.Coefficient().BitLen() > maxCoefficientBits {
		return decimal.Decimal{}, fmt.Errorf("%w: out of range: %.32q", ErrInvalidNumber, text)
	}
	return d, nil
}

func (c *Client) dropped(ctx context.Context, path string, index int, err error) {
	c.log.DebugContext(ctx, "Dropped registry record",
		slog.String("listing", path),
		slog.Int("index", index),
		slog.Any("error", err),
	)
}

func (c *Client) summarize(ctx context.Context, path string, total, kept int) {
	if kept == total {
		return
	}
	c.log.WarnContext(ctx, "Registry records could not be normalized",
		slog.String("listing", path),
		slog.Int("dropped", total-kept),
		slog.Int("total", total),
	)
}

func (c *Client) getRecords(ctx context.Context, path string) ([]map[string]json.RawMessage, error) {
	url := c.baseURL + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var records []map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	return records, nil
}

func parseVault(rec map[string]json.RawMessage) (Vault, error) {
	addr, err := NormalizeAddress(firstString(rec, addressFields...))
	if err != nil {
		return Vault{}, err
	}

	v := Vault{
		Address: addr,
		Chain:   firstString(rec, chainFields...),
	}

	if raw, ok := present(rec, "tvl"); ok {
		if v.TVL, err = ParseNumber(raw); err != nil {
			return Vault{}, err
		}
	}

	if raw, ok := present(rec, "lastHarvest"); ok {
		ts, err := ParseNumber(raw)
		if err != nil {
			return Vault{}, err
		}
		if secs := ts.IntPart(); secs > 0 {
			v.LastHarvest = time.Unix(secs, 0).UTC()
		}
	}

	return v, nil
}

// firstString returns the first non-empty string value among keys
func firstString(rec map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := present(rec, k)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// present reports whether key holds a non-null value
func present(rec map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := rec[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}
