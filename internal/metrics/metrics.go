package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nomad_reconciler"

// Outcome label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultFatal   = "fatal"
)

// Metrics groups the reconciler collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles             *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	orphans            prometheus.Counter
	serviceDeletions   *prometheus.CounterVec
	allocationRestarts *prometheus.CounterVec
	allocationStops    *prometheus.CounterVec
	apiRequests        *prometheus.CounterVec
	lastCycle          prometheus.Gauge
}

// New registers the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by result",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orphan_sweep",
			Name:      "orphan_registrations_total",
			Help:      "Service registrations whose allocation could not be found",
		}),
		serviceDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orphan_sweep",
			Name:      "service_deletions_total",
			Help:      "Orphan registration deletions by result",
		}, []string{"result"}),
		allocationRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "empty_service_sweep",
			Name:      "allocation_restarts_total",
			Help:      "Allocation restarts issued for unregistered services by result",
		}, []string{"result"}),
		allocationStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "empty_service_sweep",
			Name:      "allocation_stops_total",
			Help:      "Force stops issued for allocations desired to stop by result",
		}, []string{"result"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Nomad API requests by method and status code",
		}, []string{"method", "code"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.orphans,
		m.serviceDeletions,
		m.allocationRestarts,
		m.allocationStops,
		m.apiRequests,
		m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentTransport counts API requests going through next.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperCounter(m.apiRequests, next)
}

func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
	if result == ResultSuccess {
		m.lastCycle.SetToCurrentTime()
	}
}

func (m *Metrics) OrphanFound() {
	if m == nil {
		return
	}
	m.orphans.Inc()
}

func (m *Metrics) ServiceDeleted(ok bool) {
	if m == nil {
		return
	}
	m.serviceDeletions.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) AllocationRestarted(ok bool) {
	if m == nil {
		return
	}
	m.allocationRestarts.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) AllocationStopped(ok bool) {
	if m == nil {
		return
	}
	m.allocationStops.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
