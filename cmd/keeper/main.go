package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/screwyprof/keeper/keeper"
	"github.com/screwyprof/keeper/keeper/config"
	"github.com/screwyprof/keeper/keeper/metrics"
	"github.com/screwyprof/keeper/ops"
	"github.com/screwyprof/keeper/pkg/beefy"
	"github.com/screwyprof/keeper/pkg/clock"
	"github.com/screwyprof/keeper/pkg/evm"
	"github.com/screwyprof/keeper/pkg/logger"
)

var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Parse()
	if err != nil {
		slog.ErrorContext(ctx, "Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	log.InfoContext(ctx, "Harvest keeper starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	// Chain node
	node, err := evm.Dial(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to chain node", slog.Any("error", err))
		os.Exit(1)
	}
	defer node.Close()

	if err := checkChainID(ctx, node, cfg); err != nil {
		log.ErrorContext(ctx, "Chain node rejected", slog.Any("error", err))
		os.Exit(1)
	}

	signer := evm.NewKeySigner(cfg.Key(), cfg.ChainIDBig())

	// HTTP client & registry client
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	registry := beefy.NewClient(httpClient, cfg.RegistryURL, beefy.WithLogger(log))

	// Metrics and health
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	tracker := ops.NewTracker(ops.StaleAfter(cfg.PollInterval, cfg.RetryBackoff), clock.SystemClock{}.Now)

	// Create keeper service
	service := keeper.NewService(registry, node, signer, cfg.Policy(),
		keeper.WithPollInterval(cfg.PollInterval),
		keeper.WithRetryBackoff(cfg.RetryBackoff),
	)

	events, done := service.Start(ctx)

	opts := eventLogging(ctx, log)
	opts = append(opts, m.Subscriptions()...)
	opts = append(opts, tracker.Subscriptions()...)
	subCloser := keeper.NewSubscriber(events, opts...)
	defer subCloser()

	// Ops server
	var server *http.Server
	if cfg.HTTPPort != "" {
		mux := http.NewServeMux()
		ops.NewHandler(tracker, reg, m).AddRoutes(mux)

		server = &http.Server{
			Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
			Handler:           logger.NewMiddleware(log)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.InfoContext(ctx, "Ops server started", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.ErrorContext(ctx, "Ops server failed", slog.Any("error", err))
				stop()
			}
		}()
	}

	// Wait for shutdown
	<-done
	log.InfoContext(ctx, "Keeper stopped")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "Ops server forced to shutdown", slog.Any("error", err))
		}
	}
}

// checkChainID refuses a node serving a different chain than the one harvests are signed for
func checkChainID(ctx context.Context, node *evm.Client, cfg config.Config) error {
	id, err := node.ChainID(ctx)
	if err != nil {
		return err
	}
	if id.Cmp(cfg.ChainIDBig()) != 0 {
		return fmt.Errorf("node serves chain %s, harvests are signed for chain %d", id, cfg.ChainID)
	}
	return nil
}

// eventLogging configures event handlers using slog directly
func eventLogging(ctx context.Context, log *slog.Logger) []keeper.SubscriberOption {
	return []keeper.SubscriberOption{
		keeper.OnKeeperStarted(func(event keeper.KeeperStarted) {
			log.InfoContext(ctx, "Keeper started",
				logger.Address("operator", event.Operator),
				slog.Bool("dryRun", event.DryRun),
				slog.Duration("pollInterval", event.PollInterval),
			)
		}),
		keeper.OnPassStarted(func(event keeper.PassStarted) {
			log.DebugContext(ctx, "Pass started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Int("vaults", event.Vaults),
				slog.Int("rewards", event.Rewards),
			)
		}),
		keeper.OnVaultRejected(func(event keeper.VaultRejected) {
			attrs := []any{
				logger.Address("vault", event.Vault.Address),
				slog.String("reason", string(event.Reason)),
			}
			if !event.RewardUSD.IsZero() {
				attrs = append(attrs, logger.USD("rewardUsd", event.RewardUSD))
			}
			if !event.CostUSD.IsZero() {
				attrs = append(attrs, logger.USD("costUsd", event.CostUSD))
			}
			log.DebugContext(ctx, "Vault rejected", attrs...)
		}),
		keeper.OnHarvestCandidate(func(event keeper.HarvestCandidate) {
			log.InfoContext(ctx, "Harvest candidate",
				logger.Address("vault", event.Vault.Address),
				slog.String("chain", event.Vault.Chain),
				logger.USD("tvlUsd", event.Vault.TVL),
				logger.USD("rewardUsd", event.RewardUSD),
			)
		}),
		keeper.OnVaultFailed(func(event keeper.VaultFailed) {
			log.WarnContext(ctx, "Vault evaluation failed",
				logger.Address("vault", event.Vault.Address),
				slog.Any("error", event.Err),
			)
		}),
		keeper.OnHarvestExecuted(func(event keeper.HarvestExecuted) {
			a := event.Action
			attrs := []any{
				logger.Address("vault", a.Vault),
				slog.String("mode", string(a.Mode)),
				logger.USD("rewardUsd", a.RewardUSD),
				logger.USD("costUsd", a.CostUSD),
				slog.Uint64("nonce", a.Nonce),
				slog.Uint64("gasLimit", a.GasLimit),
			}
			if a.TxHash != "" {
				attrs = append(attrs, slog.String("txHash", a.TxHash))
			}
			log.InfoContext(ctx, "Harvest executed", attrs...)
		}),
		keeper.OnPassCompleted(func(event keeper.PassCompleted) {
			s := event.Summary
			log.InfoContext(ctx, "Pass completed",
				slog.Int("vaults", s.Vaults),
				slog.Int("evaluated", s.Evaluated),
				slog.Int("rejected", s.Rejected),
				slog.Int("failed", s.Failed),
				slog.Int("harvested", s.Harvested),
				slog.Int("duplicates", s.Duplicates),
				slog.Bool("interrupted", s.Interrupted),
				slog.Duration("duration", s.Duration),
			)
		}),
		keeper.OnPassFailed(func(event keeper.PassFailed) {
			log.ErrorContext(ctx, "Pass failed",
				slog.Any("error", event.Err),
				slog.Duration("retryIn", event.RetryIn),
			)
		}),
		keeper.OnKeeperShutdown(func(event keeper.KeeperShutdown) {
			log.InfoContext(ctx, "Keeper stopping",
				slog.String("reason", event.Reason.Error()),
			)
		}),
	}
}
