// Package evm adapts an Ethereum JSON-RPC node and a local signing key to the
// operations the keeper needs: nonce, gas estimation, gas price and submission.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultTimeout bounds a single RPC call
const DefaultTimeout = 15 * time.Second

// ErrDial is returned when the node endpoint cannot be reached or parsed
var ErrDial = errors.New("failed to dial chain node")

// Client wraps ethclient so that every call carries its own deadline
type Client struct {
	eth     *ethclient.Client
	timeout time.Duration
}

// Dial connects to an HTTP or WebSocket JSON-RPC endpoint
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDial, err)
	}
	return NewClient(eth, timeout), nil
}

// NewClient wraps an existing ethclient. A non-positive timeout selects DefaultTimeout.
func NewClient(eth *ethclient.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{eth: eth, timeout: timeout}
}

// PendingNonceAt returns the next transaction sequence number of account,
// counting transactions still in the node's pool
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.PendingNonceAt(ctx, account)
}

// EstimateGas simulates msg against the latest state and returns the gas it would use
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.EstimateGas(ctx, msg)
}

// SuggestGasPrice returns the node's current legacy gas price in wei
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.SuggestGasPrice(ctx)
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.SendTransaction(ctx, tx)
}

// ChainID returns the EIP-155 chain identifier reported by the node
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.ChainID(ctx)
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.eth.Close()
}
