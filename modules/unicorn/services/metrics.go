package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cyclesTotal *prometheus.CounterVec
	rowsTotal   *prometheus.CounterVec

	cycleDuration *prometheus.HistogramVec

	lastSuccess    prometheus.Gauge
	nextCycleDelay prometheus.Gauge
	state          *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		cyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unicorn_etl",
			Name:      "cycles_total",
			Help:      "Total number of ETL cycles by result.",
		}, []string{"result"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unicorn_etl",
			Name:      "rows_total",
			Help:      "Total number of processed rows by outcome.",
		}, []string{"outcome"}),
		cycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unicorn_etl",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one extract, transform and load pass.",
			Buckets: []float64{
				0.1, 0.5, 1, 2, 5,
				10, 30, 60, 120, 300, 600,
			},
		}, []string{"result"}),
		lastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "unicorn_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last committed cycle.",
		}),
		nextCycleDelay: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "unicorn_etl",
			Name:      "next_cycle_delay_seconds",
			Help:      "Randomized sleep chosen after the last cycle.",
		}),
		state: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "unicorn_etl",
			Name:      "scheduler_state",
			Help:      "Current scheduler state (1 for the active one).",
		}, []string{"state"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func (m *metrics) observeLoad(r LoadReport) {
	m.rowsTotal.WithLabelValues("company_inserted").Add(float64(r.CompaniesInserted))
	m.rowsTotal.WithLabelValues("company_updated").Add(float64(r.CompaniesUpdated))
	m.rowsTotal.WithLabelValues("company_failed").Add(float64(r.CompaniesFailed))
	m.rowsTotal.WithLabelValues("fact_upserted").Add(float64(r.FactsUpserted))
	m.rowsTotal.WithLabelValues("fact_skipped").Add(float64(r.FactsSkipped))
	m.rowsTotal.WithLabelValues("fact_failed").Add(float64(r.FactsFailed))
}
