package flights

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Domenick1991/flightstat/internal/aeroapi"
	"github.com/Domenick1991/flightstat/internal/domain"
	"github.com/Domenick1991/flightstat/internal/kafka"
	"github.com/Domenick1991/flightstat/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 2 * time.Second

var airportCode = regexp.MustCompile(`^[A-Z0-9]{3,4}$`)

type FlightUseCase interface {
	Lookup(ctx context.Context, input LookupInput) (*domain.FlightBatch, error)
	LookupWindow(ctx context.Context, input LookupInput, kind domain.EndpointKind) (*domain.FlightBatch, error)
}

// FlightSource fetches the raw flights of one upstream window.
type FlightSource interface {
	FetchFlights(ctx context.Context, q domain.UpstreamQuery) (aeroapi.FetchResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type LookupInput struct {
	Airport   string
	User      string
	RequestID string
	// ActiveOnly overrides the service default when set.
	ActiveOnly *bool
}

type FlightService struct {
	source       FlightSource
	apiKey       string
	policy       WindowPolicy
	activeOnly   bool
	now          func() time.Time
	logger       *slog.Logger
	producer     Producer
	lookupsTopic string
}

type FlightServiceOption func(*FlightService)

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.logger = logger
	}
}

func WithEventProducer(producer Producer, topic string) FlightServiceOption {
	return func(s *FlightService) {
		s.producer = producer
		s.lookupsTopic = topic
	}
}

func NewFlightService(source FlightSource, apiKey string, policy WindowPolicy, activeOnly bool, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{
		source:     source,
		apiKey:     apiKey,
		policy:     policy,
		activeOnly: activeOnly,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup queries the arrived and scheduled windows of an airport concurrently
// and merges them into one batch. Input is validated before any upstream call.
// Upstream calls are not cancelled when the caller goes away.
func (s *FlightService) Lookup(ctx context.Context, input LookupInput) (*domain.FlightBatch, error) {
	airport, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	kinds := []domain.EndpointKind{domain.EndpointArrivals, domain.EndpointScheduledArrivals}
	queries := []domain.UpstreamQuery{
		{Airport: airport, Window: s.policy.ArrivedWindow(now), Kind: domain.EndpointArrivals, APIKey: s.apiKey},
		{Airport: airport, Window: s.policy.ScheduledWindow(now), Kind: domain.EndpointScheduledArrivals, APIKey: s.apiKey},
	}
	span := domain.TimeWindow{Start: queries[0].Window.Start, End: queries[1].Window.End}

	s.logger.Info("flight lookup",
		"request_id", input.RequestID,
		"airport", airport,
		"user", input.User,
		"arrivals_window", formatWindow(queries[0].Window),
		"scheduled_window", formatWindow(queries[1].Window),
	)

	results := make([]aeroapi.FetchResult, len(queries))
	errs := make([]error, len(queries))
	fetchCtx := context.WithoutCancel(ctx)

	// every fetch reports through errs, so Wait never short-circuits
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			results[i], errs[i] = s.source.FetchFlights(fetchCtx, q)
			return nil
		})
	}
	_ = g.Wait()

	if errs[0] != nil || errs[1] != nil {
		return nil, s.fail(ctx, input, airport, span, now, newLookupError(kinds, errs))
	}

	var degraded []domain.EndpointKind
	for i, res := range results {
		if res.Degraded {
			degraded = append(degraded, kinds[i])
		}
	}

	normalizer := s.normalizer(now, airport)
	batch := Merge(
		normalizer.NormalizeAll(results[0].Flights, domain.EndpointArrivals),
		normalizer.NormalizeAll(results[1].Flights, domain.EndpointScheduledArrivals),
		MergeOptions{
			Airport:    airport,
			User:       input.User,
			ActiveOnly: resolveActiveOnly(input, s.activeOnly),
			Degraded:   degraded,
			Timestamp:  now,
		},
	)

	s.succeed(ctx, input, span, &batch)
	return &batch, nil
}

// LookupWindow queries a single window of an airport. Unlike Lookup it does
// not narrow to active flights unless the input asks for it, since the
// arrivals window holds mostly landed flights.
func (s *FlightService) LookupWindow(ctx context.Context, input LookupInput, kind domain.EndpointKind) (*domain.FlightBatch, error) {
	airport, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var window domain.TimeWindow
	switch kind {
	case domain.EndpointArrivals:
		window = s.policy.ArrivedWindow(now)
	case domain.EndpointScheduledArrivals:
		window = s.policy.ScheduledWindow(now)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, kind)
	}

	s.logger.Info("flight window lookup",
		"request_id", input.RequestID,
		"airport", airport,
		"user", input.User,
		"endpoint", kind,
		"window", formatWindow(window),
	)

	q := domain.UpstreamQuery{Airport: airport, Window: window, Kind: kind, APIKey: s.apiKey}
	res, err := s.source.FetchFlights(context.WithoutCancel(ctx), q)
	if err != nil {
		return nil, s.fail(ctx, input, airport, window, now, newLookupError([]domain.EndpointKind{kind}, []error{err}))
	}

	var degraded []domain.EndpointKind
	if res.Degraded {
		degraded = append(degraded, kind)
	}

	flights := s.normalizer(now, airport).NormalizeAll(res.Flights, kind)
	var arrived, scheduled []domain.Flight
	if kind == domain.EndpointArrivals {
		arrived = flights
	} else {
		scheduled = flights
	}

	batch := Merge(arrived, scheduled, MergeOptions{
		Airport:    airport,
		User:       input.User,
		ActiveOnly: resolveActiveOnly(input, false),
		Degraded:   degraded,
		Timestamp:  now,
	})
	batch.Meta.Source = fmt.Sprintf("AeroAPI (%s)", kind)

	s.succeed(ctx, input, window, &batch)
	return &batch, nil
}

func (s *FlightService) validate(input LookupInput) (string, error) {
	airport := strings.ToUpper(strings.TrimSpace(input.Airport))
	if airport == "" {
		metrics.Lookups.WithLabelValues("invalid_input").Inc()
		return "", ErrMissingAirport
	}
	if !airportCode.MatchString(airport) {
		metrics.Lookups.WithLabelValues("invalid_input").Inc()
		return "", fmt.Errorf("%w: %q", ErrInvalidAirport, airport)
	}
	if s.apiKey == "" {
		metrics.Lookups.WithLabelValues("misconfigured").Inc()
		return "", ErrMissingCredentials
	}
	return airport, nil
}

func (s *FlightService) normalizer(now time.Time, airport string) Normalizer {
	n := NewNormalizer(now, airport)
	n.Logger = s.logger
	return n
}

func (s *FlightService) fail(ctx context.Context, input LookupInput, airport string, span domain.TimeWindow, now time.Time, lerr *LookupError) *LookupError {
	s.logger.Warn("flight lookup failed", "request_id", input.RequestID, "airport", airport, "status", lerr.Status, "error", lerr)
	metrics.Lookups.WithLabelValues(kafka.OutcomeUpstreamError).Inc()
	s.publish(ctx, kafka.LookupEvent{
		RequestID:   input.RequestID,
		Airport:     airport,
		User:        input.User,
		Outcome:     kafka.OutcomeUpstreamError,
		Status:      lerr.Status,
		WindowStart: span.Start,
		WindowEnd:   span.End,
		At:          now,
	})
	return lerr
}

func (s *FlightService) succeed(ctx context.Context, input LookupInput, span domain.TimeWindow, batch *domain.FlightBatch) {
	meta := batch.Meta
	s.logger.Info("flight lookup done",
		"request_id", input.RequestID,
		"airport", meta.Airport,
		"arrived", meta.Arrived,
		"scheduled", meta.Scheduled,
		"total", meta.Total,
		"degraded", meta.Degraded,
	)
	metrics.Lookups.WithLabelValues(kafka.OutcomeOK).Inc()
	metrics.FlightsServed.Observe(float64(meta.Total))

	degradedNames := make([]string, 0, len(meta.Degraded))
	for _, kind := range meta.Degraded {
		degradedNames = append(degradedNames, string(kind))
	}
	s.publish(ctx, kafka.LookupEvent{
		RequestID:   input.RequestID,
		Airport:     meta.Airport,
		User:        input.User,
		Outcome:     kafka.OutcomeOK,
		Status:      http.StatusOK,
		Total:       meta.Total,
		Arrived:     meta.Arrived,
		Scheduled:   meta.Scheduled,
		Degraded:    degradedNames,
		WindowStart: span.Start,
		WindowEnd:   span.End,
		At:          meta.Timestamp,
	})
}

func (s *FlightService) publish(ctx context.Context, event kafka.LookupEvent) {
	if s.producer == nil || s.lookupsTopic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.producer.Publish(ctx, s.lookupsTopic, event.Airport, event); err != nil {
		s.logger.Warn("failed to publish lookup event", "airport", event.Airport, "error", err)
	}
}

func resolveActiveOnly(input LookupInput, def bool) bool {
	if input.ActiveOnly != nil {
		return *input.ActiveOnly
	}
	return def
}

func formatWindow(w domain.TimeWindow) string {
	return aeroapi.FormatTimestamp(w.Start) + "/" + aeroapi.FormatTimestamp(w.End)
}

var _ FlightUseCase = (*FlightService)(nil)
var _ FlightSource = (*aeroapi.Client)(nil)
