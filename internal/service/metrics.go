package service

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	ingests        *prom.CounterVec
	chunksIngested prom.Counter
	queries        prom.Counter
	indexSize      prom.Gauge
	rebuild        prom.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prom.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingests: prom.NewCounterVec(prom.CounterOpts{
			Name: "studyrag_ingest_total",
			Help: "Document ingestions by outcome.",
		}, []string{"outcome"}),
		chunksIngested: prom.NewCounter(prom.CounterOpts{
			Name: "studyrag_chunks_ingested_total",
			Help: "Chunks appended to the store.",
		}),
		queries: prom.NewCounter(prom.CounterOpts{
			Name: "studyrag_queries_total",
			Help: "Retrieval queries served.",
		}),
		indexSize: prom.NewGauge(prom.GaugeOpts{
			Name: "studyrag_index_size",
			Help: "Chunks in the live index.",
		}),
		rebuild: prom.NewHistogram(prom.HistogramOpts{
			Name:    "studyrag_rebuild_seconds",
			Help:    "Time spent embedding the store and rebuilding the index.",
			Buckets: prom.ExponentialBuckets(0.005, 4, 8),
		}),
	}
	for _, c := range []prom.Collector{m.ingests, m.chunksIngested, m.queries, m.indexSize, m.rebuild} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

const (
	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

func (m *Metrics) ingested(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.chunksIngested.Add(float64(chunks))
	}
}

func (m *Metrics) queried() {
	if m == nil {
		return
	}
	m.queries.Inc()
}

func (m *Metrics) rebuilt(size int, took time.Duration) {
	if m == nil {
		return
	}
	m.indexSize.Set(float64(size))
	m.rebuild.Observe(took.Seconds())
}
