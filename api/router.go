package api

import (
	"log/slog"
	"net/http"

	"github.com/Domenick1991/flightstat/config"
	"github.com/Domenick1991/flightstat/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Flights flights.FlightUseCase
	// Limiter is optional; without it requests are not rate limited.
	Limiter Limiter
	// Healthz is optional and serves GET /healthz.
	Healthz http.Handler
	Logger  *slog.Logger
}

func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(logger), CORS(NewOriginAllowList(cfg.CORS.AllowedOrigins)))

	hasKey := cfg.Upstream.APIKey != ""
	NewHealthHandler(ServiceInfo{
		Name:    cfg.App.Name,
		Version: cfg.App.Version,
		Port:    cfg.HTTP.Port,
		HasKey:  hasKey,
	}).Register(&router.RouterGroup)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Healthz != nil {
		router.GET("/healthz", gin.WrapH(deps.Healthz))
	}

	flightHandler := NewFlightHandler(deps.Flights, hasKey, logger)
	apiGroup := router.Group("/api")
	windowGroup := router.Group("/")
	if deps.Limiter != nil && cfg.RateLimit.RequestsPerMinute > 0 {
		limit := RateLimit(deps.Limiter, cfg.RateLimit.RequestsPerMinute, logger)
		apiGroup.Use(limit)
		windowGroup.Use(limit)
	}
	flightHandler.Register(apiGroup)
	flightHandler.RegisterWindows(windowGroup)

	return router
}
