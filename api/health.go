package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceInfo is what /health and / report about the running process.
type ServiceInfo struct {
	Name    string
	Version string
	Port    string
	HasKey  bool
}

type HealthHandler struct {
	info ServiceInfo
	now  func() time.Time
}

func NewHealthHandler(info ServiceInfo) *HealthHandler {
	return &HealthHandler{info: info, now: time.Now}
}

func (h *HealthHandler) Register(router *gin.RouterGroup) {
	router.GET("/health", h.health)
	router.GET("/", h.index)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    h.info.Name + " is running",
		"version":   h.info.Version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"hasApiKey": h.info.HasKey,
			"port":      h.info.Port,
		},
		"endpoints": gin.H{
			"arrivals":           "Past flights (landed)",
			"scheduled_arrivals": "Future flights (en route)",
		},
	})
}

func (h *HealthHandler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": h.info.Name,
		"version": h.info.Version,
		"endpoints": gin.H{
			"health":  "/health",
			"healthz": "/healthz",
			"metrics": "/metrics",
			"flights": "/api/flights?airport=ICAO&user=username",
			"debug":   "/api/flights?airport=ICAO&user=username&debug=true",
		},
	})
}
