package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the diagnostics of the update cycle, labelled by show.
type Metrics struct {
	unparsed      *prometheus.CounterVec
	positional    *prometheus.CounterVec
	inserted      *prometheus.CounterVec
	feedFailures  *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		unparsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podwatch",
			Name:      "unparsed_entries_total",
			Help:      "Feed entries that didn't match their show's numbering convention.",
		}, []string{"show_id"}),
		positional: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podwatch",
			Name:      "positional_entries_total",
			Help:      "Feed entries numbered by their position in the feed.",
		}, []string{"show_id"}),
		inserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podwatch",
			Name:      "episodes_inserted_total",
			Help:      "Episodes added to the store.",
		}, []string{"show_id"}),
		feedFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podwatch",
			Name:      "feed_failures_total",
			Help:      "Feeds that couldn't be fetched.",
		}, []string{"show_id"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podwatch",
			Name:      "shows_skipped_total",
			Help:      "Incremental syncs skipped because the show already released this week.",
		}, []string{"show_id"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "podwatch",
			Name:      "sync_all_duration_seconds",
			Help:      "Duration of a full update cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

func (m *Metrics) observe(r Report) {
	if m == nil {
		return
	}

	switch {
	case r.Skipped:
		m.skipped.WithLabelValues(r.ShowID).Inc()
	case r.FeedFailed:
		m.feedFailures.WithLabelValues(r.ShowID).Inc()
	default:
		m.unparsed.WithLabelValues(r.ShowID).Add(float64(r.Unparsed))
		m.positional.WithLabelValues(r.ShowID).Add(float64(r.Positional))
		m.inserted.WithLabelValues(r.ShowID).Add(float64(r.Inserted))
	}
}
