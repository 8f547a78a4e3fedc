package analytics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/book-expert/narration-service/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "narration"

// PrometheusSink exposes synthesis records as Prometheus collectors.
type PrometheusSink struct {
	requestsTotal       *prometheus.CounterVec
	charactersTotal     *prometheus.CounterVec
	processingDuration  *prometheus.HistogramVec
	audioDuration       prometheus.Histogram
	audioBytesTotal     prometheus.Counter
	attemptsPerRequest  prometheus.Histogram
	warningsTotal       prometheus.Counter
	efficiencyRatio     prometheus.Histogram
	providerStatusTotal *prometheus.CounterVec
}

// NewPrometheusSink creates the collectors and registers them with registerer.
func NewPrometheusSink(registerer prometheus.Registerer) (*PrometheusSink, error) {
	sink := &PrometheusSink{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_requests_total",
				Help:      "Total number of synthesis requests by outcome",
			},
			[]string{"outcome"},
		),
		charactersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "characters_total",
				Help:      "Total characters requested and sent to the provider",
			},
			[]string{"stage"}, // stage: requested, processed
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processing_duration_seconds",
				Help:      "Wall-clock time of synthesis requests in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		audioDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audio_duration_seconds",
				Help:      "Estimated duration of produced audio in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		audioBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_bytes_total",
				Help:      "Total bytes of audio produced",
			},
		),
		attemptsPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_attempts",
				Help:      "Provider attempts per synthesis request",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
		),
		warningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "text_warnings_total",
				Help:      "Total synthesis requests whose text produced a length warning",
			},
		),
		efficiencyRatio: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "efficiency_ratio",
				Help:      "Processing time divided by audio duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
			},
		),
		providerStatusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_error_status_total",
				Help:      "Total provider rejections by HTTP status",
			},
			[]string{"status"},
		),
	}

	for _, collector := range sink.collectors() {
		err := registerer.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return sink, nil
}

func (s *PrometheusSink) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.requestsTotal,
		s.charactersTotal,
		s.processingDuration,
		s.audioDuration,
		s.audioBytesTotal,
		s.attemptsPerRequest,
		s.warningsTotal,
		s.efficiencyRatio,
		s.providerStatusTotal,
	}
}

// RecordSynthesis updates the success collectors.
func (s *PrometheusSink) RecordSynthesis(_ context.Context, metrics core.SynthesisMetrics) error {
	s.requestsTotal.WithLabelValues(core.OutcomeSuccess).Inc()
	s.charactersTotal.WithLabelValues("requested").Add(float64(metrics.CharactersRequested))
	s.charactersTotal.WithLabelValues("processed").Add(float64(metrics.CharactersProcessed))
	s.processingDuration.WithLabelValues(core.OutcomeSuccess).Observe(metrics.ProcessingTime.Seconds())
	s.audioDuration.Observe(metrics.AudioDurationSeconds)
	s.audioBytesTotal.Add(float64(metrics.AudioBytes))
	s.attemptsPerRequest.Observe(float64(metrics.Attempts))
	s.efficiencyRatio.Observe(metrics.EfficiencyRatio())

	if metrics.Warning != "" {
		s.warningsTotal.Inc()
	}

	return nil
}

// RecordError updates the failure collectors.
func (s *PrometheusSink) RecordError(_ context.Context, _ string, errCtx core.ErrorContext) error {
	s.requestsTotal.WithLabelValues(errCtx.Outcome).Inc()
	s.charactersTotal.WithLabelValues("requested").Add(float64(errCtx.CharactersRequested))
	s.processingDuration.WithLabelValues(errCtx.Outcome).Observe(errCtx.ProcessingTime.Seconds())

	if errCtx.Attempts > 0 {
		s.attemptsPerRequest.Observe(float64(errCtx.Attempts))
	}

	if errCtx.StatusCode >= http.StatusBadRequest {
		s.providerStatusTotal.WithLabelValues(strconv.Itoa(errCtx.StatusCode)).Inc()
	}

	return nil
}

// Handler serves the gatherer's metrics in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
