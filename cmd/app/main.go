package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightstat/api"
	"github.com/Domenick1991/flightstat/config"
	"github.com/Domenick1991/flightstat/internal/aeroapi"
	"github.com/Domenick1991/flightstat/internal/bootstrap"
	"github.com/Domenick1991/flightstat/internal/cache"
	"github.com/Domenick1991/flightstat/internal/kafka"
	"github.com/Domenick1991/flightstat/internal/service/flights"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("flightstat stopped", "error", err)
		os.Exit(1)
	}
}

// run owns every resource so that its defers complete before main exits.
func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := aeroapi.NewClient(cfg.Upstream, aeroapi.WithLogger(logger))

	opts := []flights.FlightServiceOption{flights.WithLogger(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", "error", err)
			}
		}()
		opts = append(opts, flights.WithEventProducer(producer, cfg.Kafka.LookupsTopic))
	}

	flightService := flights.NewFlightService(
		client,
		cfg.Upstream.APIKey,
		flights.WindowPolicyFromConfig(cfg.Window),
		cfg.Flights.ActiveOnly,
		opts...,
	)

	servers, err := bootstrap.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init servers: %w", err)
	}

	deps := api.RouterDeps{
		Flights: flightService,
		Healthz: servers.Healthz(),
		Logger:  logger,
	}
	if cfg.Redis.Addr != "" {
		limiter := cache.NewRedisLimiter(cfg.Redis)
		defer func() {
			if err := limiter.Close(); err != nil {
				logger.Warn("close redis limiter", "error", err)
			}
		}()
		if err := limiter.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, rate limiting fails open", "addr", cfg.Redis.Addr, "error", err)
		}
		deps.Limiter = limiter
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg, deps)

	logger.Info("starting flightstat",
		"version", cfg.App.Version,
		"http", cfg.HTTP.ListenAddress(),
		"active_only", cfg.Flights.ActiveOnly,
		"cors_origins", cfg.CORS.AllowedOrigins,
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"rate_limit", cfg.RateLimit.RequestsPerMinute,
	)

	if err := servers.Run(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
