package evo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports trainer progress. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	generations        prometheus.Counter
	generationFailures *prometheus.CounterVec
	generationSeconds  prometheus.Histogram
	bestScore          prometheus.Gauge
	speciesCount       prometheus.Gauge
	childrenInserted   prometheus.Counter
	childrenRejected   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speciestrainer",
			Name:      "generations_total",
			Help:      "Generations committed by the trainer.",
		}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speciestrainer",
			Name:      "generation_failures_total",
			Help:      "Generations aborted, by reason.",
		}, []string{"reason"}),
		generationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "speciestrainer",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one generation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speciestrainer",
			Name:      "best_score",
			Help:      "Score of the current best genome.",
		}),
		speciesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speciestrainer",
			Name:      "species",
			Help:      "Species in the current partition.",
		}),
		childrenInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speciestrainer",
			Name:      "children_inserted_total",
			Help:      "Children accepted into a generation pool.",
		}),
		childrenRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speciestrainer",
			Name:      "children_rejected_total",
			Help:      "Children offered to a full generation pool.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.generations,
		m.generationFailures,
		m.generationSeconds,
		m.bestScore,
		m.speciesCount,
		m.childrenInserted,
		m.childrenRejected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeGeneration(elapsed time.Duration, best float64, species, inserted, rejected int) {
	if m == nil {
		return
	}
	m.generations.Inc()
	m.generationSeconds.Observe(elapsed.Seconds())
	m.bestScore.Set(best)
	m.speciesCount.Set(float64(species))
	m.childrenInserted.Add(float64(inserted))
	m.childrenRejected.Add(float64(rejected))
}

func (m *Metrics) observeFailure(reason string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeBest(best float64) {
	if m == nil {
		return
	}
	m.bestScore.Set(best)
}

func (m *Metrics) observeSpecies(count int) {
	if m == nil {
		return
	}
	m.speciesCount.Set(float64(count))
}
