package keeper_test

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/screwyprof/keeper/pkg/beefy"
	"github.com/screwyprof/keeper/pkg/evm"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// fakeClock implements Clock interface for deterministic testing
type fakeClock struct {
	tick chan time.Time

	mu    sync.Mutex
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{tick: make(chan time.Time, 10)}
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	return f.tick
}

func (f *fakeClock) Now() time.Time {
	return now
}

func (f *fakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

// mockRegistry serves one listing per pass; the last one repeats
type mockRegistry struct {
	mu     sync.Mutex
	passes []registryPass
	calls  int
}

type registryPass struct {
	vaults     []beefy.Vault
	rewards    []beefy.Reward
	vaultsErr  error
	rewardsErr error
}

func registryWith(passes ...registryPass) *mockRegistry {
	return &mockRegistry{passes: passes}
}

func (m *mockRegistry) GetVaults(context.Context) ([]beefy.Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.passes[min(m.calls, len(m.passes)-1)]
	m.calls++
	if p.vaultsErr != nil {
		return nil, p.vaultsErr
	}
	return p.vaults, nil
}

func (m *mockRegistry) GetRewards(context.Context) ([]beefy.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.passes[min(m.calls, len(m.passes))-1]
	if p.rewardsErr != nil {
		return nil, p.rewardsErr
	}
	return p.rewards, nil
}

func (m *mockRegistry) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockChain implements Chain interface, recording every call
type mockChain struct {
	gas         uint64
	gasPrice    *big.Int
	nonce       uint64
	estimateErr error
	gasPriceErr error
	nonceErr    error
	sendErr     error
	onEstimate  func(msg ethereum.CallMsg)

	mu         sync.Mutex
	estimated  []ethereum.CallMsg
	nonceCalls int
	sent       []*types.Transaction
}

func (m *mockChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonceCalls++
	if m.nonceErr != nil {
		return 0, m.nonceErr
	}
	return m.nonce + uint64(m.nonceCalls-1), nil
}

func (m *mockChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if m.onEstimate != nil {
		m.onEstimate(msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimated = append(m.estimated, msg)
	if m.estimateErr != nil {
		return 0, m.estimateErr
	}
	return m.gas, nil
}

func (m *mockChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	if m.gasPriceErr != nil {
		return nil, m.gasPriceErr
	}
	if m.gasPrice == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *mockChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, tx)
	return nil
}

func (m *mockChain) Estimated() []ethereum.CallMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ethereum.CallMsg(nil), m.estimated...)
}

func (m *mockChain) Sent() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction(nil), m.sent...)
}

// countingSigner signs with a real key and counts how often it was asked to
type countingSigner struct {
	*evm.KeySigner
	err error

	mu    sync.Mutex
	signs int
}

func newCountingSigner() *countingSigner {
	key, err := evm.ParsePrivateKey(testKey)
	if err != nil {
		panic(err)
	}
	return &countingSigner{KeySigner: evm.NewKeySigner(key, big.NewInt(137))}
}

func (s *countingSigner) Sign(tx *types.Transaction) (*types.Transaction, error) {
	s.mu.Lock()
	s.signs++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.KeySigner.Sign(tx)
}

func (s *countingSigner) Signs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signs
}
