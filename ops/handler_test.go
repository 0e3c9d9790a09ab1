package ops_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/keeper/keeper"
	"github.com/screwyprof/keeper/keeper/metrics"
	"github.com/screwyprof/keeper/ops"
)

var operator = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("it reports starting before the first pass", func(t *testing.T) {
		t.Parallel()

		// Arrange
		_, server := opsServer(t)
		publish(server.tracker.Subscriptions(), keeper.KeeperStarted{Operator: operator, DryRun: true})

		// Act
		code, body := get(t, server, "/healthz")

		// Assert
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, ops.StatusStarting, body["status"])
		assert.Equal(t, operator.Hex(), body["operator"])
		assert.Equal(t, true, body["dryRun"])
		assert.NotContains(t, body, "lastPassAt")
	})

	t.Run("it reports ok with the last pass once one completes", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clock, server := opsServer(t)
		clock.advance(10 * time.Second)
		publish(server.tracker.Subscriptions(),
			keeper.PassFailed{Err: keeper.ErrRegistryUnavailable},
			keeper.PassCompleted{Summary: keeper.PassSummary{Vaults: 4, Evaluated: 4, Harvested: 1, Rejected: 3}},
		)

		// Act
		code, body := get(t, server, "/healthz")

		// Assert
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, ops.StatusOK, body["status"])
		assert.InDelta(t, 0, body["consecutiveFailures"], 0)
		assert.Equal(t, "registry unavailable", body["lastFailure"])

		lastPass, ok := body["lastPass"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 4, lastPass["vaults"], 0)
		assert.InDelta(t, 1, lastPass["harvested"], 0)
	})

	t.Run("it reports unavailable when passes stop completing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clock, server := opsServer(t)
		publish(server.tracker.Subscriptions(), keeper.PassCompleted{})
		publish(server.tracker.Subscriptions(),
			keeper.PassFailed{Err: keeper.ErrRegistryUnavailable},
			keeper.PassFailed{Err: keeper.ErrRegistryUnavailable},
		)
		clock.advance(2 * time.Minute)

		// Act
		code, body := get(t, server, "/healthz")

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.InDelta(t, http.StatusServiceUnavailable, body["code"], 0)
		assert.Contains(t, body["message"], "no recent completed pass")

		details, ok := body["details"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, ops.StatusStale, details["status"])
		assert.InDelta(t, 2, details["consecutiveFailures"], 0)
	})

	t.Run("it reports unavailable when no pass completes after start", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clock, server := opsServer(t)
		clock.advance(2 * time.Minute)

		// Act
		code, _ := get(t, server, "/healthz")

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("it reports unavailable after shutdown", func(t *testing.T) {
		t.Parallel()

		// Arrange
		_, server := opsServer(t)
		publish(server.tracker.Subscriptions(),
			keeper.PassCompleted{},
			keeper.KeeperShutdown{Reason: errors.New("context canceled")},
		)

		// Act
		code, body := get(t, server, "/healthz")

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, code)
		details, ok := body["details"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, ops.StatusStopped, details["status"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("it serves keeper metrics in the Prometheus text format", func(t *testing.T) {
		t.Parallel()

		// Arrange
		_, server := opsServer(t)
		publish(server.metrics.Subscriptions(), keeper.VaultRejected{Reason: keeper.ReasonTVLTooLarge})
		_, _ = get(t, server, "/healthz")

		// Act
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(raw), `keeper_vault_rejections_total{reason="TVL too large"} 1`)
		assert.Contains(t, string(raw), `keeper_http_requests_total{code="200",handler="healthz",method="get"} 1`)
	})
}

func TestStaleAfter(t *testing.T) {
	t.Parallel()

	t.Run("it allows three missed polls plus a retry", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 100*time.Second, ops.StaleAfter(30*time.Second, 10*time.Second))
	})
}

// Test setup helpers

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

type testServer struct {
	*httptest.Server
	tracker *ops.Tracker
	metrics *metrics.Metrics
}

func opsServer(t *testing.T) (*testClock, *testServer) {
	t.Helper()

	clock := &testClock{at: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tracker := ops.NewTracker(time.Minute, clock.now)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	ops.NewHandler(tracker, reg, m).AddRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return clock, &testServer{Server: server, tracker: tracker, metrics: m}
}

// publish delivers events to the given handlers and waits until they are handled
func publish(opts []keeper.SubscriberOption, events ...keeper.Event) {
	ch := make(chan keeper.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	keeper.NewSubscriber(ch, opts...)()
}

func get(t *testing.T, server *testServer, path string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}
