// Package metrics exposes Prometheus collectors for the console.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payresolve",
			Name:      "diagnoses_total",
			Help:      "Diagnosis requests sent to the diagnostic API, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	diagnoseSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payresolve",
			Name:      "diagnose_seconds",
			Help:      "Diagnosis round-trip latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	apiUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payresolve",
			Name:      "api_up",
			Help:      "1 when the last health check of the diagnostic API succeeded.",
		},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payresolve",
			Name:      "sessions_active",
			Help:      "Open console page sessions.",
		},
	)
)

// Register attaches the collectors to reg. Collectors that are already
// registered are skipped.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		diagnosesTotal,
		diagnoseSeconds,
		apiUp,
		sessionsActive,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Observer records view events. The zero value is ready to use.
type Observer struct{}

func (Observer) ObserveDiagnosis(elapsed time.Duration, ok bool) {
	label := OutcomeFailed
	if ok {
		label = OutcomeSuccess
	}
	diagnosesTotal.WithLabelValues(label).Inc()
	if elapsed < 0 {
		elapsed = 0
	}
	diagnoseSeconds.Observe(elapsed.Seconds())
}

func (Observer) ObservePing(online bool) {
	if online {
		apiUp.Set(1)
		return
	}
	apiUp.Set(0)
}

// Sessions tracks live page sessions. The zero value is ready to use.
type Sessions struct{}

func (Sessions) SessionOpened() { sessionsActive.Inc() }
func (Sessions) SessionClosed() { sessionsActive.Dec() }
