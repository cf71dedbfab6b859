// Package metrics exposes game and refresh counters through Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rewired-gh/predictle/internal/logger"
)

// Recorder records refresh and round metrics on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	fetches    *prometheus.CounterVec
	fetchTime  *prometheus.HistogramVec
	rejected   *prometheus.CounterVec
	poolSize   *prometheus.GaugeVec
	retryCount prometheus.Gauge
	rounds     *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictle_fetches_total",
				Help: "Market fetches by outcome",
			},
			[]string{"outcome"},
		),
		fetchTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predictle_fetch_duration_seconds",
				Help:    "Duration of market fetch and catalog build in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictle_markets_rejected_total",
				Help: "Raw markets dropped by the eligibility filter",
			},
			[]string{"reason"},
		),
		poolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "predictle_pool_markets",
				Help: "Markets in the current pool snapshot",
			},
			[]string{"mode"},
		),
		retryCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "predictle_refresh_retry_count",
				Help: "Consecutive failed or empty fetches",
			},
		),
		rounds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictle_rounds_total",
				Help: "Graded rounds by mode and zone",
			},
			[]string{"mode", "zone"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictle_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordFetch records one fetch attempt.
func (r *Recorder) RecordFetch(outcome string, d time.Duration) {
	r.fetches.WithLabelValues(outcome).Inc()
	r.fetchTime.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRejected adds n filtered markets under reason.
func (r *Recorder) RecordRejected(reason string, n int) {
	r.rejected.WithLabelValues(reason).Add(float64(n))
}

// SetPoolSize records the size of a mode's pool.
func (r *Recorder) SetPoolSize(mode string, n int) {
	r.poolSize.WithLabelValues(mode).Set(float64(n))
}

// SetRetryCount records the refresher's consecutive failure count.
func (r *Recorder) SetRetryCount(n int) {
	r.retryCount.Set(float64(n))
}

// RecordRound records a graded round.
func (r *Recorder) RecordRound(mode, zone string) {
	r.rounds.WithLabelValues(mode, zone).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr at path until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}()

	logger.Info("Serving metrics on %s%s", addr, path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
