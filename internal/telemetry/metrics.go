package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics bundles the engine's Prometheus collectors. A nil
// *EngineMetrics is a valid no-op receiver so the core can run without a
// metrics registry in tests.
type EngineMetrics struct {
	microtasksTotal *prometheus.CounterVec
	execDuration    *prometheus.HistogramVec
	chunkSize       prometheus.Histogram
	poolSize        *prometheus.GaugeVec
	poolUtilization *prometheus.GaugeVec
	runsTotal       *prometheus.CounterVec
}

// NewEngineMetrics creates and registers the engine collectors.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		microtasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_microtasks_total",
				Help: "Total microtask executions by pool and outcome.",
			},
			[]string{"pool", "status"},
		),
		execDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hive_execution_duration_seconds",
				Help:    "Microtask execution duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pool"},
		),
		chunkSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hive_chunk_size",
				Help:    "Number of assignments per executed chunk.",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		poolSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hive_pool_workers",
				Help: "Current worker count per pool.",
			},
			[]string{"pool"},
		),
		poolUtilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hive_pool_utilization_percent",
				Help: "Busy-worker percentage per pool, 0-100.",
			},
			[]string{"pool"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_runs_total",
				Help: "Completed orchestration runs by outcome.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.microtasksTotal,
		m.execDuration,
		m.chunkSize,
		m.poolSize,
		m.poolUtilization,
		m.runsTotal,
	)
	return m
}

// ObserveExecution records one microtask execution for a pool.
func (m *EngineMetrics) ObserveExecution(poolID string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "failed"
	}
	m.microtasksTotal.WithLabelValues(poolID, status).Inc()
	m.execDuration.WithLabelValues(poolID).Observe(elapsed.Seconds())
}

// ObserveChunk records the size of one executed chunk.
func (m *EngineMetrics) ObserveChunk(size int) {
	if m == nil {
		return
	}
	m.chunkSize.Observe(float64(size))
}

// ObserveRun records a completed run outcome.
func (m *EngineMetrics) ObserveRun(success bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "failed"
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// SetPoolSize updates the worker-count gauge for a pool.
func (m *EngineMetrics) SetPoolSize(poolID string, size int) {
	if m == nil {
		return
	}
	m.poolSize.WithLabelValues(poolID).Set(float64(size))
}

// SetPoolUtilization updates the utilization gauge for a pool.
func (m *EngineMetrics) SetPoolUtilization(poolID string, pct float64) {
	if m == nil {
		return
	}
	m.poolUtilization.WithLabelValues(poolID).Set(pct)
}
