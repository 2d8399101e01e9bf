package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightstat/config"
	"github.com/Domenick1991/flightstat/internal/audit"
	"github.com/Domenick1991/flightstat/internal/kafka"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("kafka brokers are not configured (KAFKA_BROKERS)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("worker metrics listening", "addr", cfg.Worker.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.LookupsTopic, logger)
	defer consumer.Close()

	recorder := audit.NewRecorder(logger)

	logger.Info("audit worker started", "topic", cfg.Kafka.LookupsTopic, "group_id", cfg.Kafka.GroupID)
	if err := consumer.Consume(ctx, recorder.Record); err != nil {
		logger.Error("consumer stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown metrics server", "error", err)
	}
}
