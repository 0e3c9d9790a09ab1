// Package metrics exposes keeper events as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screwyprof/keeper/keeper"
)

const namespace = "keeper"

// Metrics holds all Prometheus metrics for the keeper.
type Metrics struct {
	// Pass metrics
	PassesTotal      *prometheus.CounterVec
	PassDuration     prometheus.Histogram
	VaultsListed     prometheus.Gauge
	LastPassComplete prometheus.Gauge

	// Vault metrics
	RejectionsTotal *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec

	// Harvest metrics
	HarvestsTotal    *prometheus.CounterVec
	HarvestRewardUSD prometheus.Histogram
	HarvestCostUSD   prometheus.Histogram

	// Ops server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the keeper metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	usdBuckets := []float64{0.01, 0.1, 0.5, 1, 3, 5, 10, 25, 50, 100, 500}

	return &Metrics{
		PassesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "total",
			Help:      "Total number of passes by outcome",
		}, []string{"outcome"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Duration of completed passes in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		VaultsListed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "vaults_listed",
			Help:      "Number of vaults in the last registry listing",
		}),
		LastPassComplete: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_pass_timestamp",
			Help:      "Unix timestamp of the last completed pass",
		}),

		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "rejections_total",
			Help:      "Total number of vaults turned down by reason",
		}, []string{"reason"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "failures_total",
			Help:      "Total number of vault evaluations that failed by kind",
		}, []string{"kind"}),

		HarvestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "total",
			Help:      "Total number of harvests by mode",
		}, []string{"mode"}),
		HarvestRewardUSD: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "reward_usd",
			Help:      "Expected reward of accepted harvests in USD",
			Buckets:   usdBuckets,
		}),
		HarvestCostUSD: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "harvest",
			Name:      "cost_usd",
			Help:      "Estimated gas cost of accepted harvests in USD",
			Buckets:   usdBuckets,
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of ops HTTP requests",
		}, []string{"handler", "code", "method"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "code", "method"}),
	}
}

// Subscriptions returns the event handlers that feed the metrics
func (m *Metrics) Subscriptions() []keeper.SubscriberOption {
	return []keeper.SubscriberOption{
		keeper.OnPassStarted(func(e keeper.PassStarted) {
			m.VaultsListed.Set(float64(e.Vaults))
		}),
		keeper.OnPassCompleted(func(e keeper.PassCompleted) {
			m.PassesTotal.WithLabelValues("completed").Inc()
			m.PassDuration.Observe(e.Summary.Duration.Seconds())
			m.LastPassComplete.Set(float64(e.Summary.StartedAt.Add(e.Summary.Duration).Unix()))
		}),
		keeper.OnPassFailed(func(keeper.PassFailed) {
			m.PassesTotal.WithLabelValues("failed").Inc()
		}),
		keeper.OnVaultRejected(func(e keeper.VaultRejected) {
			m.RejectionsTotal.WithLabelValues(string(e.Reason)).Inc()
		}),
		keeper.OnVaultFailed(func(e keeper.VaultFailed) {
			m.FailuresTotal.WithLabelValues(FailureKind(e.Err)).Inc()
		}),
		keeper.OnHarvestExecuted(func(e keeper.HarvestExecuted) {
			m.HarvestsTotal.WithLabelValues(string(e.Action.Mode)).Inc()
			m.HarvestRewardUSD.Observe(e.Action.RewardUSD.InexactFloat64())
			m.HarvestCostUSD.Observe(e.Action.CostUSD.InexactFloat64())
		}),
	}
}

// FailureKind maps a vault error to a low-cardinality label
func FailureKind(err error) string {
	switch {
	case errors.Is(err, keeper.ErrGasEstimationFailed):
		return "gas_estimation"
	case errors.Is(err, keeper.ErrNonceUnavailable):
		return "nonce"
	case errors.Is(err, keeper.ErrSubmissionFailed):
		return "submission"
	case errors.Is(err, keeper.ErrUnexpectedVault):
		return "unexpected"
	default:
		return "other"
	}
}

// InstrumentHandler counts and times requests served by h
func (m *Metrics) InstrumentHandler(name string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerDuration(
		m.HTTPRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(labels), h),
	)
}
