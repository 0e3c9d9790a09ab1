package ops

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screwyprof/keeper/keeper/metrics"
	"github.com/screwyprof/keeper/ops/api"
	"github.com/screwyprof/keeper/pkg/httpkit"
)

const (
	HealthRoute  = http.MethodGet + " " + "/healthz"
	MetricsRoute = http.MethodGet + " " + "/metrics"
)

// Handler serves the ops endpoints
type Handler struct {
	tracker  *Tracker
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
}

func NewHandler(tracker *Tracker, gatherer prometheus.Gatherer, m *metrics.Metrics) *Handler {
	return &Handler{
		tracker:  tracker,
		gatherer: gatherer,
		metrics:  m,
	}
}

func (h *Handler) AddRoutes(m *http.ServeMux) {
	m.Handle(HealthRoute, h.metrics.InstrumentHandler("healthz", httpkit.HandlerFunc(h.Health)))
	m.Handle(MetricsRoute, h.metrics.InstrumentHandler("metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

// Health reports 200 while passes keep completing and 503 otherwise
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	health, err := h.tracker.Check()
	if err != nil {
		return httpkit.JsonError(api.ServiceUnavailable(err, health))
	}
	return httpkit.JSON(http.StatusOK, health)
}
