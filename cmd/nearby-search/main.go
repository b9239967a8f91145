package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nearby-search/internal/adapter/device"
	"github.com/couchcryptid/nearby-search/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/nearby-search/internal/adapter/kafka"
	"github.com/couchcryptid/nearby-search/internal/adapter/places"
	"github.com/couchcryptid/nearby-search/internal/config"
	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/feed"
	"github.com/couchcryptid/nearby-search/internal/location"
	"github.com/couchcryptid/nearby-search/internal/observability"
	"github.com/couchcryptid/nearby-search/internal/relay"
	"github.com/couchcryptid/nearby-search/internal/search"
)

// alwaysReady is the readiness checker when no fix feed is configured.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	policy, err := search.ParsePolicy(cfg.SupersededSearchPolicy)
	if err != nil {
		logger.Error("invalid superseded search policy", "error", err)
		os.Exit(1)
	}

	// Location: simulated device source behind the tracker.
	source := device.NewSource(device.Policy{
		Initial:         cfg.LocationAuthorization,
		PromptResponse:  cfg.LocationPromptResponse,
		ServicesEnabled: cfg.LocationServicesEnabled,
	}, logger)
	tracker := location.NewTracker(source, logger, metrics)

	// Search backend (cache feature-flagged via PLACES_CACHE_SIZE).
	var backend domain.SearchBackend = places.NewClient(
		cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.PlacesRadiusMeters, cfg.PlacesTimeout, logger, metrics)
	if cfg.PlacesCacheSize > 0 {
		backend = places.NewCachedBackend(backend, cfg.PlacesCacheSize, metrics)
		logger.Info("places cache enabled", "cache_size", cfg.PlacesCacheSize)
	}

	finder := search.NewNearbyFinder(
		location.NewGate(tracker, logger),
		location.NewAcquirer(tracker, logger),
		backend,
		logger,
	)
	controller := search.NewController(finder, policy, logger, metrics)
	latest := search.NewLatestResults(controller.State(), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.DeviceCoordinates != nil {
		positioner := device.NewStaticPositioner(source, *cfg.DeviceCoordinates, cfg.DeviceFixInterval, clockwork.NewRealClock(), logger)
		logger.Info("static positioner enabled", "at", cfg.DeviceCoordinates, "interval", cfg.DeviceFixInterval)
		wg.Go(func() {
			if err := positioner.Run(ctx); err != nil {
				logger.Error("static positioner error", "error", err)
			}
		})
	}

	// Kafka fix feed and result relay (feature-flagged via KAFKA_ENABLED).
	var (
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)

		f := feed.New(reader, source, logger, metrics, cfg.BatchSize)
		ready = f
		r := relay.New(controller.State(), writer, logger, metrics)

		wg.Go(func() {
			if err := f.Run(ctx); err != nil {
				logger.Error("fix feed error", "error", err)
			}
		})
		wg.Go(func() {
			if err := r.Run(ctx); err != nil {
				logger.Error("result relay error", "error", err)
			}
		})
		logger.Info("kafka enabled", "brokers", cfg.KafkaBrokers,
			"fix_topic", cfg.KafkaFixTopic, "results_topic", cfg.KafkaResultsTopic)
	} else {
		logger.Info("kafka disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, controller, latest, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.SearchOnStart {
		task := controller.Fetch(nil)
		logger.Info("initial search requested", "task", task)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	controller.Close()
	latest.Close()
	wg.Wait()
	tracker.Close()

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
