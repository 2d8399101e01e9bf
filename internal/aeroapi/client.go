package aeroapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/flightstat/config"
	"github.com/Domenick1991/flightstat/internal/domain"
	"github.com/Domenick1991/flightstat/internal/metrics"
)

const (
	// AeroAPI rejects timestamps with fractional seconds.
	timestampLayout = "2006-01-02T15:04:05Z"

	defaultMaxPages = 3
	defaultTimeout  = 15 * time.Second
	maxBodyBytes    = 32 << 20
)

// Envelope keys in lookup order. The provider names the list after the
// endpoint, but some responses use the generic key.
var envelopeKeys = []string{
	string(domain.EndpointArrivals),
	string(domain.EndpointScheduledArrivals),
	"flights",
}

type FetchResult struct {
	Flights []domain.RawFlight
	// Degraded is set when a successful response carried a body that could not
	// be read as a flight list. Flights is empty in that case.
	Degraded bool
}

type Client struct {
	baseURL   string
	maxPages  int
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(cfg config.UpstreamConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxPages:  maxPages,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFlights makes exactly one request for the query's window. Failures are
// returned as *UpstreamError.
func (c *Client) FetchFlights(ctx context.Context, q domain.UpstreamQuery) (FetchResult, error) {
	endpoint := c.endpointURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FetchResult{}, newTransportError(q.Kind, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("x-apikey", q.APIKey)
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("aeroapi request", "endpoint", q.Kind, "url", endpoint)

	started := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues(string(q.Kind)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(string(q.Kind), strconv.Itoa(http.StatusBadGateway)).Inc()
		return FetchResult{}, newTransportError(q.Kind, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(string(q.Kind), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return FetchResult{}, newTransportError(q.Kind, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("aeroapi error response", "endpoint", q.Kind, "status", resp.StatusCode)
		return FetchResult{}, newStatusError(q.Kind, resp.StatusCode, body)
	}

	flights, degraded := decodeFlights(body)
	if degraded {
		metrics.UpstreamDegraded.WithLabelValues(string(q.Kind)).Inc()
		c.logger.Warn("aeroapi body is not a flight list", "endpoint", q.Kind, "bytes", len(body))
	}
	return FetchResult{Flights: flights, Degraded: degraded}, nil
}

func (c *Client) endpointURL(q domain.UpstreamQuery) string {
	params := url.Values{}
	params.Set("start", FormatTimestamp(q.Window.Start))
	params.Set("end", FormatTimestamp(q.Window.End))
	params.Set("max_pages", strconv.Itoa(c.maxPages))

	return fmt.Sprintf("%s/airports/%s/flights/%s?%s",
		c.baseURL, url.PathEscape(q.Airport), q.Kind, params.Encode())
}

// FormatTimestamp renders t as whole-second UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timestampLayout)
}

// decodeFlights reads the flight list out of a response envelope. A missing
// list is an empty result; a body that is not an object, or a list key that
// does not hold an array, is reported as degraded.
func decodeFlights(body []byte) ([]domain.RawFlight, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, true
	}

	for _, key := range envelopeKeys {
		raw, ok := envelope[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var flights []domain.RawFlight
		if err := json.Unmarshal(raw, &flights); err != nil {
			return nil, true
		}
		return flights, false
	}
	return nil, false
}
