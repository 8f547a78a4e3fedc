// main package for the narration-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/analytics"
	"github.com/book-expert/narration-service/internal/config"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/objectstore"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/book-expert/narration-service/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// handleMargin covers the object store round trips around one synthesis.
	handleMargin      = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	metricsPath       = "/metrics"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "narration-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires NATS, the object stores, analytics and the synthesizer, and runs
// the worker until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	natsConnection, err := nats.Connect(natsURL, nats.Name("narration-service"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	textStore, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open text object store: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open audio object store: %w", err)
	}

	log.Info("Reading text from bucket %s, writing audio to bucket %s", textStore.Bucket(), audioStore.Bucket())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := buildSink(cfg, natsConnection, registry, log)
	if err != nil {
		return err
	}

	if cfg.Analytics.MetricsAddr != "" {
		stopMetrics := startMetricsServer(cfg.Analytics.MetricsAddr, registry, log)
		defer stopMetrics()
	}

	synthesizer, err := tts.NewSynthesizer(cfg.SynthesizerSettings(), httpclient.New(httpclient.WithLogger(log)), sink, log)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	narrationWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		worker.Stores{Text: textStore, Audio: audioStore},
		synthesizer,
		cfg.WorstCaseLatency()+handleMargin,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System(
		"Narration-Service successfully initialized. Listening for jobs on subject: %s (worst-case synthesis %s)",
		cfg.NATS.TextProcessedSubject, cfg.WorstCaseLatency(),
	)

	err = narrationWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	log.System("Narration-Service shut down cleanly.")

	return nil
}

// buildSink combines the log sink with the optional NATS publisher and the
// Prometheus collectors.
func buildSink(
	cfg *config.Config,
	natsConnection *nats.Conn,
	registry *prometheus.Registry,
	log *logger.Logger,
) (core.AnalyticsSink, error) {
	logSink, err := analytics.NewLogSink(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create log sink: %w", err)
	}

	promSink, err := analytics.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus sink: %w", err)
	}

	sinks := []core.AnalyticsSink{logSink, promSink}

	if cfg.Analytics.PublishToNATS {
		natsSink, natsErr := analytics.NewNATSSink(
			natsConnection, cfg.Analytics.SynthesisSubject, cfg.Analytics.ErrorSubject,
		)
		if natsErr != nil {
			return nil, fmt.Errorf("failed to create NATS analytics sink: %w", natsErr)
		}

		sinks = append(sinks, natsSink)
	}

	return analytics.NewFanout(sinks...), nil
}

// startMetricsServer serves the registry and returns a function that stops it.
func startMetricsServer(addr string, registry *prometheus.Registry, log *logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, analytics.Handler(registry))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("Serving metrics on %s%s", addr, metricsPath)

		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("Metrics server failed: %v", serveErr)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			log.Warn("Metrics server shutdown: %v", shutdownErr)
		}
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
