package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-watch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-watch-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/storm-watch-service/internal/adapter/mqtt"
	"github.com/couchcryptid/storm-watch-service/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-watch-service/internal/config"
	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/history"
	"github.com/couchcryptid/storm-watch-service/internal/observability"
	"github.com/couchcryptid/storm-watch-service/internal/pipeline"
	"github.com/couchcryptid/storm-watch-service/internal/sampling"
	"github.com/couchcryptid/storm-watch-service/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prefs, err := sqlite.Open(ctx, cfg.StatePath)
	if err != nil {
		logger.Error("failed to open state database", "error", err, "path", cfg.StatePath)
		os.Exit(1)
	}

	store := history.NewStore(history.NewFileStorage(cfg.HistoryPath), logger)
	feed := httpadapter.NewFeed(logger)
	unsubscribe := store.Subscribe(feed.Broadcast)

	// Notifications are feature-flagged via KAFKA_BROKERS.
	var notifier domain.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = kafkaNotifier
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	p := pipeline.New(store, prefs, notifier, pipeline.Settings{
		AlertsEnabled:      cfg.StormAlertsEnabled,
		SeaLevelCorrection: cfg.SeaLevelCorrection,
		Storm: domain.StormSettings{
			Window:     cfg.StormWindow,
			DropRate:   cfg.StormDropRate,
			MinSamples: cfg.StormMinSamples,
		},
	}, logger, metrics)

	mqttClient := mqttadapter.NewClient(mqttadapter.Options{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
	}, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("failed to connect to mqtt broker", "error", err, "broker", cfg.MQTTBroker)
		os.Exit(1)
	}

	coordinator := sampling.New(
		mqttadapter.NewBarometerStream(mqttClient, cfg.MQTTBarometerTopic, logger),
		mqttadapter.NewGPSStream(mqttClient, cfg.MQTTGPSTopic, logger),
		p, logger, metrics,
		sampling.WithTimeout(cfg.SampleTimeout),
	)
	sched := scheduler.New(coordinator, cfg.SampleInterval, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		httpadapter.Checks{p, prefs, mqttClient},
		store, p, feed, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start sampling.
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	unsubscribe()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	mqttClient.Disconnect()
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if err := prefs.Close(); err != nil {
		logger.Error("state database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
