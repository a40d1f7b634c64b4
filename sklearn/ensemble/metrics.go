package ensemble

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
)

// Vote sources recorded by Metrics.Votes.
const (
	VoteSourceOOB      = "oob"
	VoteSourceFallback = "fallback"
)

// Metrics holds the prometheus collectors updated by a RandomForestClassifier.
type Metrics struct {
	TreesFitted prometheus.Counter     // 学習済みの木の累計
	FitDuration prometheus.Histogram   // FitBootstraps 1回あたりの所要時間
	Votes       *prometheus.CounterVec // 行ごとの投票結果 (source: oob, fallback)
}

// NewMetrics creates the forest collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TreesFitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oobforest",
			Name:      "trees_fitted_total",
			Help:      "Total number of decision trees fitted.",
		}),
		FitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oobforest",
			Name:      "fit_duration_seconds",
			Help:      "Time spent fitting all trees of a forest.",
			Buckets:   prometheus.DefBuckets,
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oobforest",
			Name:      "votes_total",
			Help:      "Rows labelled by out-of-bag voting, by how the label was decided.",
		}, []string{"source"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.TreesFitted, m.FitDuration, m.Votes} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register forest metrics")
		}
	}
	return m, nil
}

func (m *Metrics) treeFitted() {
	if m != nil {
		m.TreesFitted.Inc()
	}
}

func (m *Metrics) observeFit(seconds float64) {
	if m != nil {
		m.FitDuration.Observe(seconds)
	}
}

func (m *Metrics) vote(source string) {
	if m != nil {
		m.Votes.WithLabelValues(source).Inc()
	}
}
