package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bahramrousta/circuit-breaker/config"
	"github.com/bahramrousta/circuit-breaker/internal/circuitbreaker"
	"github.com/bahramrousta/circuit-breaker/internal/httpserver"
	"github.com/bahramrousta/circuit-breaker/internal/metrics"
	"github.com/bahramrousta/circuit-breaker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	breakerConfig, err := buildBreakerConfig(cfg)
	if err != nil {
		log.Error("Failed to build breaker config", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	registry, err := circuitbreaker.NewRegistry(breakerConfig,
		circuitbreaker.WithLogger(log),
		circuitbreaker.WithOnStateChange(stateChangeEmitter(collector)),
	)
	if err != nil {
		log.Error("Failed to create breaker registry", slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(registry, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Observability endpoints ready",
		slog.String("address", cfg.Server.Address))

	d := &demo{
		logger:       log,
		registry:     registry,
		service:      NewUnreliableService(5 * time.Millisecond),
		collector:    collector,
		resetTimeout: breakerConfig.ResetTimeout,
	}
	go d.run(ctx)

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildBreakerConfig(cfg *config.Config) (circuitbreaker.Config, error) {
	resetTimeout, err := time.ParseDuration(cfg.Breaker.ResetTimeout)
	if err != nil {
		return circuitbreaker.Config{}, err
	}

	return circuitbreaker.Config{
		MaxFailures:         cfg.Breaker.MaxFailures,
		ResetTimeout:        resetTimeout,
		HalfOpenMaxRequests: cfg.Breaker.HalfOpenMaxRequests,
	}, nil
}

func stateChangeEmitter(collector *metrics.Collector) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		select {
		case collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventStateChanged,
			Timestamp: time.Now(),
			Breaker:   name,
			State:     to.String(),
		}:
		default:
		}
	}
}
