package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// result query service.
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec   // labels: op={ids,data_types,times,time_series,maximum,long_profile}, outcome={success,empty,client_error,error}
	QueryDuration *prometheus.HistogramVec // labels: op

	// Store loading metrics.
	StoreLoaded       prometheus.Gauge
	StoreLoadDuration prometheus.Histogram

	// Maxima export metrics (cmd/export).
	RecordsExported prometheus.Counter
	ExportErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_results",
			Name:      "queries_total",
			Help:      "Result store queries by operation and outcome.",
		}, []string{"op", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro_results",
			Name:      "query_duration_seconds",
			Help:      "Duration of result store queries.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"op"}),
		StoreLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_results",
			Name:      "store_loaded",
			Help:      "1 once the result store has decoded successfully.",
		}),
		StoreLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro_results",
			Name:      "store_load_duration_seconds",
			Help:      "Time to decode the result store on first access.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		RecordsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_results",
			Name:      "records_exported_total",
			Help:      "Maxima records published to the sink topic.",
		}),
		ExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_results",
			Name:      "export_errors_total",
			Help:      "Failed export batches.",
		}),
	}

	prometheus.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.StoreLoaded,
		m.StoreLoadDuration,
		m.RecordsExported,
		m.ExportErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		QueriesTotal:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hydro_results", Name: "queries_total"}, []string{"op", "outcome"}),
		QueryDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "hydro_results", Name: "query_duration_seconds"}, []string{"op"}),
		StoreLoaded:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hydro_results", Name: "store_loaded"}),
		StoreLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hydro_results", Name: "store_load_duration_seconds"}),
		RecordsExported:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydro_results", Name: "records_exported_total"}),
		ExportErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydro_results", Name: "export_errors_total"}),
	}
}
