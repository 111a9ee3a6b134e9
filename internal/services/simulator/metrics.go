package simulator

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

// Outcome labels, also used to pick HTTP status codes.
const (
	OutcomeOK          = "ok"
	OutcomeValidation  = "validation"
	OutcomeRange       = "invalid_range"
	OutcomeUnavailable = "data_unavailable"
	OutcomeEngine      = "engine"
	OutcomeError       = "error"
)

// Classify maps an error onto its taxonomy label.
func Classify(err error) string {
	var (
		ve *simerr.ValidationError
		re *simerr.InvalidRangeError
		du *simerr.DataUnavailableError
		ee *simerr.EngineError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &ee):
		return OutcomeEngine
	case errors.As(err, &ve):
		return OutcomeValidation
	case errors.As(err, &re):
		return OutcomeRange
	case errors.As(err, &du):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	engineErrors prometheus.Counter
	cache        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropwater_simulations_total",
			Help: "Simulation requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropwater_simulation_duration_seconds",
			Help:    "Wall time of one simulation, validation included.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		engineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropwater_engine_errors_total",
			Help: "Engine calls that failed or returned no rows.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropwater_weather_cache_total",
			Help: "Weather cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.engineErrors, m.cache)
	}
	return m
}

func (m *Metrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(Classify(err)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) engineError() {
	if m == nil {
		return
	}
	m.engineErrors.Inc()
}

// CacheLookup is meant for weather.Service.OnLookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}
