package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Domenick1991/flightstat/internal/aeroapi"
	"github.com/Domenick1991/flightstat/internal/domain"
	"github.com/Domenick1991/flightstat/internal/service/flights"
	"github.com/gin-gonic/gin"
)

const defaultUser = "unknown"

type FlightHandler struct {
	service flights.FlightUseCase
	hasKey  bool
	logger  *slog.Logger
}

type flightsResponse struct {
	Success bool             `json:"success"`
	Flights []domain.Flight  `json:"flights"`
	Meta    domain.BatchMeta `json:"meta"`
}

type errorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Detail  string                 `json:"detail,omitempty"`
	Errors  []flights.WindowResult `json:"errors,omitempty"`
}

func NewFlightHandler(service flights.FlightUseCase, hasKey bool, logger *slog.Logger) *FlightHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlightHandler{service: service, hasKey: hasKey, logger: logger}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/flights", h.list)
}

// RegisterWindows adds the single-window endpoints /arrivals/:airport and
// /scheduled_arrivals/:airport.
func (h *FlightHandler) RegisterWindows(router *gin.RouterGroup) {
	router.GET("/arrivals/:airport", h.window(domain.EndpointArrivals))
	router.GET("/scheduled_arrivals/:airport", h.window(domain.EndpointScheduledArrivals))
}

func (h *FlightHandler) list(c *gin.Context) {
	airport := strings.ToUpper(strings.TrimSpace(c.Query("airport")))
	user := c.DefaultQuery("user", defaultUser)

	if c.Query("debug") == "true" {
		h.debug(c, airport, user)
		return
	}

	input := flights.LookupInput{
		Airport:   airport,
		User:      user,
		RequestID: c.GetString(requestIDKey),
	}
	if raw, ok := c.GetQuery("active"); ok {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid active flag", Detail: raw})
			return
		}
		input.ActiveOnly = &active
	}

	batch, err := h.service.Lookup(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, flightsResponse{
		Success: true,
		Flights: batch.Flights,
		Meta:    batch.Meta,
	})
}

func (h *FlightHandler) window(kind domain.EndpointKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := flights.LookupInput{
			Airport:   c.Param("airport"),
			User:      c.DefaultQuery("user", defaultUser),
			RequestID: c.GetString(requestIDKey),
		}
		if raw, ok := c.GetQuery("active"); ok {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid active flag", Detail: raw})
				return
			}
			input.ActiveOnly = &active
		}

		batch, err := h.service.LookupWindow(c.Request.Context(), input, kind)
		if err != nil {
			h.writeWindowError(c, err)
			return
		}

		c.JSON(http.StatusOK, flightsResponse{
			Success: true,
			Flights: batch.Flights,
			Meta:    batch.Meta,
		})
	}
}

func (h *FlightHandler) debug(c *gin.Context, airport, user string) {
	c.JSON(http.StatusOK, gin.H{
		"debug":         true,
		"airport":       airport,
		"user":          user,
		"hasKey":        h.hasKey,
		"query":         c.Request.URL.Query(),
		"airportLength": len(airport),
	})
}

func (h *FlightHandler) writeError(c *gin.Context, err error) {
	var lerr *flights.LookupError
	switch {
	case errors.Is(err, flights.ErrMissingAirport):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing airport"})
	case errors.Is(err, flights.ErrInvalidAirport):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid airport", Detail: err.Error()})
	case errors.Is(err, flights.ErrMissingCredentials):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Missing AEROAPI_KEY"})
	case errors.As(err, &lerr):
		c.JSON(lerr.Status, errorResponse{Error: "FlightAware API error", Errors: lerr.Windows})
	default:
		h.logger.Error("flight lookup failed", "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Detail: err.Error()})
	}
}

// writeWindowError mirrors the upstream status of a single-window lookup.
// Transport failures become 502 "Network error".
func (h *FlightHandler) writeWindowError(c *gin.Context, err error) {
	var upErr *aeroapi.UpstreamError
	var lerr *flights.LookupError
	switch {
	case errors.As(err, &upErr) && upErr.Cause == nil:
		detail := upErr.Detail
		if len(upErr.Body) > 0 {
			detail = string(upErr.Body)
		}
		c.JSON(upErr.Status, errorResponse{Error: "FlightAware API error", Detail: detail})
	case errors.As(err, &lerr):
		detail := err.Error()
		if len(lerr.Windows) > 0 && lerr.Windows[0].Detail != "" {
			detail = lerr.Windows[0].Detail
		}
		c.JSON(http.StatusBadGateway, errorResponse{Error: "Network error", Detail: detail})
	default:
		h.writeError(c, err)
	}
}
