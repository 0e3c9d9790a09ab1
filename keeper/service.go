package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/keeper/pkg/clock"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPollInterval sets the pause between two successful passes
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithRetryBackoff sets the pause after a pass the registry could not serve
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.retryBackoff = d }
}

// Service runs harvest passes forever: fetch listings, evaluate every vault, sleep
// -----------------------------------------------------------------------------
type Service struct {
	registry     Registry
	chain        Chain
	executor     *Executor
	policy       Policy
	clock        Clock
	pollInterval time.Duration
	retryBackoff time.Duration
	events       chan Event
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// By default, it uses a real clock, a 30s poll interval and a 10s retry backoff.
func NewService(registry Registry, chain Chain, signer Signer, policy Policy, opts ...Option) *Service {
	s := &Service{
		registry:     registry,
		chain:        chain,
		executor:     NewExecutor(chain, signer, policy),
		policy:       policy,
		clock:        clock.SystemClock{},
		pollInterval: DefaultPollInterval,
		retryBackoff: DefaultRetryBackoff,
		events:       make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the keeper loop and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. The vault being evaluated finishes, the pass stops, the events channel closes
//  3. Wait for complete shutdown: <-done
//
// Example:
//
//	events, done := service.Start(ctx)
//	defer func() {
//	  cancel()    // 1. Request shutdown
//	  <-done      // 2. Wait for complete shutdown
//	}()
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run alternates passes and pauses until the context is cancelled
// ---------------------------------------------------------------
func (s *Service) run(ctx context.Context) {
	s.events <- KeeperStarted{
		Operator:     s.executor.Operator(),
		DryRun:       s.policy.DryRun,
		PollInterval: s.pollInterval,
	}

	for {
		if ctx.Err() != nil {
			s.events <- KeeperShutdown{Reason: ctx.Err()}
			return
		}

		wait := s.pollInterval
		summary, err := s.runPass(ctx)
		if err != nil {
			wait = s.retryBackoff
			s.events <- PassFailed{Err: err, RetryIn: wait}
		} else {
			s.events <- PassCompleted{Summary: summary}
		}

		select {
		case <-ctx.Done():
			s.events <- KeeperShutdown{Reason: ctx.Err()}
			return
		case <-s.clock.After(wait):
		}
	}
}

// runPass fetches both listings once and evaluates every vault in listing order.
// Only a registry failure fails the pass; vault failures are reported and skipped.
func (s *Service) runPass(ctx context.Context) (PassSummary, error) {
	start := s.clock.Now()

	vaults, err := s.registry.GetVaults(ctx)
	if err != nil {
		return PassSummary{}, fmt.Errorf("%w: vaults: %w", ErrRegistryUnavailable, err)
	}

	rewards, err := s.registry.GetRewards(ctx)
	if err != nil {
		return PassSummary{}, fmt.Errorf("%w: rewards: %w", ErrRegistryUnavailable, err)
	}

	records := convertVaults(vaults)
	index := IndexRewards(convertRewards(rewards))

	summary := PassSummary{
		StartedAt: start,
		Vaults:    len(records),
		Rewards:   len(index),
	}
	s.events <- PassStarted{StartedAt: start, Vaults: summary.Vaults, Rewards: summary.Rewards}

	// calls for a vault already under evaluation survive shutdown; client timeouts bound them
	vaultCtx := context.WithoutCancel(ctx)
	seen := make(map[common.Address]struct{}, len(records))

	for _, v := range records {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		if _, dup := seen[v.Address]; dup {
			summary.Duplicates++
			s.events <- VaultRejected{Vault: v, Reason: ReasonDuplicate}
			continue
		}
		seen[v.Address] = struct{}{}
		summary.Evaluated++

		harvested, err := s.processVault(vaultCtx, v, index)
		switch {
		case err != nil:
			summary.Failed++
			s.events <- VaultFailed{Vault: v, Err: err}
		case harvested:
			summary.Harvested++
		default:
			summary.Rejected++
		}
	}

	summary.Duration = s.clock.Now().Sub(start)
	return summary, nil
}

// processVault runs one vault through eligibility, reward, cost, decision and
// execution. A panic anywhere in the pipeline is returned as ErrUnexpectedVault.
func (s *Service) processVault(ctx context.Context, v VaultRecord, rewards map[common.Address]RewardRecord) (harvested bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			harvested = false
			err = fmt.Errorf("%w: %s: %v", ErrUnexpectedVault, v.Address.Hex(), r)
		}
	}()

	eligibility := Evaluate(v, s.policy, s.clock.Now())
	reward := rewards[v.Address].EstimatedRewardUSD

	if d := Screen(eligibility, reward, s.policy); !d.Accepted {
		s.events <- VaultRejected{Vault: v, Reason: d.Reason, RewardUSD: reward.Decimal}
		return false, nil
	}
	s.events <- HarvestCandidate{Vault: v, RewardUSD: reward.Decimal}

	quote, err := EstimateCost(ctx, s.chain, s.executor.Operator(), v.Address, s.policy.NativeTokenPriceUSD)
	if err != nil {
		return false, err
	}

	if d := Decide(eligibility, reward, quote, s.policy); !d.Accepted {
		s.events <- VaultRejected{Vault: v, Reason: d.Reason, RewardUSD: reward.Decimal, CostUSD: quote.CostUSD}
		return false, nil
	}

	action, err := s.executor.Execute(ctx, v.Address, reward.Decimal, quote)
	if err != nil {
		return false, err
	}

	s.events <- HarvestExecuted{Action: action}
	return true, nil
}
