// Package ops serves the keeper's operational HTTP surface: health and metrics.
package ops

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/keeper/keeper"
)

// ErrStale is reported when no pass has completed recently enough
var ErrStale = errors.New("no recent completed pass")

// Health states
const (
	StatusStarting = "starting"
	StatusOK       = "ok"
	StatusStale    = "stale"
	StatusStopped  = "stopped"
)

// Now reports the current time
type Now func() time.Time

// Health is the snapshot served by the health endpoint
type Health struct {
	Status              string     `json:"status"`
	Operator            string     `json:"operator,omitempty"`
	DryRun              bool       `json:"dryRun"`
	StartedAt           time.Time  `json:"startedAt"`
	LastPassAt          *time.Time `json:"lastPassAt,omitempty"`
	LastPass            *PassStats `json:"lastPass,omitempty"`
	LastFailure         string     `json:"lastFailure,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// PassStats is the JSON view of a completed pass
type PassStats struct {
	Vaults      int    `json:"vaults"`
	Evaluated   int    `json:"evaluated"`
	Rejected    int    `json:"rejected"`
	Failed      int    `json:"failed"`
	Harvested   int    `json:"harvested"`
	Duplicates  int    `json:"duplicates"`
	Interrupted bool   `json:"interrupted"`
	Duration    string `json:"duration"`
}

// Tracker follows keeper events and decides whether the keeper is healthy.
// The keeper is healthy while its last completed pass, or its start when no
// pass has completed yet, is younger than staleAfter.
type Tracker struct {
	now        Now
	staleAfter time.Duration

	mu                  sync.RWMutex
	startedAt           time.Time
	operator            common.Address
	dryRun              bool
	lastPassAt          time.Time
	lastPass            keeper.PassSummary
	lastFailure         error
	consecutiveFailures int
	stopped             bool
}

// NewTracker creates a Tracker that reports stale after staleAfter without a completed pass
func NewTracker(staleAfter time.Duration, now Now) *Tracker {
	return &Tracker{
		now:        now,
		staleAfter: staleAfter,
		startedAt:  now(),
	}
}

// StaleAfter is the health threshold for a keeper polling at pollInterval
func StaleAfter(pollInterval, retryBackoff time.Duration) time.Duration {
	return 3*pollInterval + retryBackoff
}

// Subscriptions returns the event handlers that keep the tracker current
func (t *Tracker) Subscriptions() []keeper.SubscriberOption {
	return []keeper.SubscriberOption{
		keeper.OnKeeperStarted(func(e keeper.KeeperStarted) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.startedAt = t.now()
			t.operator = e.Operator
			t.dryRun = e.DryRun
		}),
		keeper.OnPassCompleted(func(e keeper.PassCompleted) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.lastPassAt = t.now()
			t.lastPass = e.Summary
			t.consecutiveFailures = 0
		}),
		keeper.OnPassFailed(func(e keeper.PassFailed) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.lastFailure = e.Err
			t.consecutiveFailures++
		}),
		keeper.OnKeeperShutdown(func(keeper.KeeperShutdown) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.stopped = true
		}),
	}
}

// Check returns the current health and an error when the keeper is not healthy
func (t *Tracker) Check() (Health, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := Health{
		StartedAt:           t.startedAt,
		DryRun:              t.dryRun,
		ConsecutiveFailures: t.consecutiveFailures,
	}
	if t.operator != (common.Address{}) {
		h.Operator = t.operator.Hex()
	}
	if t.lastFailure != nil {
		h.LastFailure = t.lastFailure.Error()
	}

	since := t.startedAt
	h.Status = StatusStarting
	if !t.lastPassAt.IsZero() {
		at := t.lastPassAt
		since = at
		h.Status = StatusOK
		h.LastPassAt = &at
		h.LastPass = passStats(t.lastPass)
	}

	switch age := t.now().Sub(since); {
	case t.stopped:
		h.Status = StatusStopped
		return h, fmt.Errorf("%w: keeper stopped", ErrStale)
	case age > t.staleAfter:
		h.Status = StatusStale
		return h, fmt.Errorf("%w: none for %s", ErrStale, age.Truncate(time.Second))
	}

	return h, nil
}

func passStats(s keeper.PassSummary) *PassStats {
	return &PassStats{
		Vaults:      s.Vaults,
		Evaluated:   s.Evaluated,
		Rejected:    s.Rejected,
		Failed:      s.Failed,
		Harvested:   s.Harvested,
		Duplicates:  s.Duplicates,
		Interrupted: s.Interrupted,
		Duration:    s.Duration.String(),
	}
}
