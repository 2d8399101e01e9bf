package flights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/flightstat/internal/aeroapi"
	"github.com/Domenick1991/flightstat/internal/domain"
	"github.com/Domenick1991/flightstat/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightSource struct {
	mock.Mock
}

func (m *MockFlightSource) FetchFlights(ctx context.Context, q domain.UpstreamQuery) (aeroapi.FetchResult, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(aeroapi.FetchResult), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func isKind(kind domain.EndpointKind) interface{} {
	return mock.MatchedBy(func(q domain.UpstreamQuery) bool { return q.Kind == kind })
}

func rawList(t *testing.T, body string) []domain.RawFlight {
	t.Helper()
	var list []domain.RawFlight
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	return list
}

func newTestService(source FlightSource, opts ...FlightServiceOption) *FlightService {
	opts = append([]FlightServiceOption{WithClock(func() time.Time { return testNow })}, opts...)
	return NewFlightService(source, "secret", DefaultWindowPolicy(), false, opts...)
}

func TestFlightService_Lookup_Success(t *testing.T) {
	source := &MockFlightSource{}
	ctx := context.Background()

	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[
			{"fa_flight_id": "a1", "ident": "DLH1", "actual_in": "2025-01-01T10:00:00Z"},
			{"fa_flight_id": "dup", "ident": "EWG2", "actual_in": "2025-01-01T11:55:00Z"}
		]`),
	}, nil).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[
			{"fa_flight_id": "dup", "ident": "EWG2", "scheduled_in": "2025-01-01T11:50:00Z"},
			{"fa_flight_id": "s1", "ident": "RYR3", "estimated_in": "2025-01-01T14:00:00Z"},
			{"ident": "TUI4", "scheduled_in": "2025-01-01T16:00:00Z"}
		]`),
	}, nil).Once()

	batch, err := newTestService(source).Lookup(ctx, LookupInput{Airport: " eddk ", User: "hakan"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "dup", "s1", "scheduled_arrivals-2"}, ids(batch.Flights))
	assert.Equal(t, domain.FlightStatusLanded, batch.Flights[1].Status)
	assert.Equal(t, domain.EndpointArrivals, batch.Flights[1].Source)
	assert.Equal(t, domain.FlightStatusEnRoute, batch.Flights[2].Status)
	assert.Equal(t, domain.FlightStatusScheduled, batch.Flights[3].Status)
	assert.Equal(t, "EDDK", batch.Flights[0].Destination.Code)

	assert.Equal(t, 4, batch.Meta.Total)
	assert.Equal(t, 2, batch.Meta.Arrived)
	assert.Equal(t, 3, batch.Meta.Scheduled)
	assert.Equal(t, "EDDK", batch.Meta.Airport)
	assert.Equal(t, "hakan", batch.Meta.User)
	assert.Equal(t, testNow, batch.Meta.Timestamp)
	assert.Empty(t, batch.Meta.Degraded)

	source.AssertExpectations(t)
}

func TestFlightService_Lookup_QueriesShareOneNow(t *testing.T) {
	source := &MockFlightSource{}
	var mu sync.Mutex
	var got []domain.UpstreamQuery

	source.On("FetchFlights", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args.Get(1).(domain.UpstreamQuery))
	}).Return(aeroapi.FetchResult{}, nil).Twice()

	calls := 0
	clock := func() time.Time {
		calls++
		return testNow.Add(time.Duration(calls) * time.Hour)
	}

	_, err := NewFlightService(source, "secret", DefaultWindowPolicy(), false, WithClock(clock)).
		Lookup(context.Background(), LookupInput{Airport: "EDDK"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, got, 2)

	byKind := map[domain.EndpointKind]domain.UpstreamQuery{}
	for _, q := range got {
		byKind[q.Kind] = q
		assert.Equal(t, "EDDK", q.Airport)
		assert.Equal(t, "secret", q.APIKey)
	}
	now := testNow.Add(time.Hour)
	assert.Equal(t, domain.TimeWindow{Start: now.Add(-12 * time.Hour), End: now}, byKind[domain.EndpointArrivals].Window)
	assert.Equal(t, domain.TimeWindow{Start: now, End: now.Add(12 * time.Hour)}, byKind[domain.EndpointScheduledArrivals].Window)
}

func TestFlightService_Lookup_FetchesConcurrently(t *testing.T) {
	source := &MockFlightSource{}
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})

	source.On("FetchFlights", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		started.Done()
		<-release
	}).Return(aeroapi.FetchResult{}, nil).Twice()

	go func() {
		// both fetches must be in flight at the same time to get here
		started.Wait()
		close(release)
	}()

	done := make(chan error, 1)
	go func() {
		_, err := newTestService(source).Lookup(context.Background(), LookupInput{Airport: "EDDK"})
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("fetches were not issued concurrently")
	}
}

func TestFlightService_Lookup_UpstreamErrorReportsBothWindows(t *testing.T) {
	source := &MockFlightSource{}

	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{}, &aeroapi.UpstreamError{
		Kind:   domain.EndpointArrivals,
		Status: http.StatusServiceUnavailable,
		Body:   json.RawMessage(`{"title":"unavailable"}`),
	}).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[{"ident": "A"}]`),
	}, nil).Once()

	batch, err := newTestService(source).Lookup(context.Background(), LookupInput{Airport: "EDDK"})
	assert.Nil(t, batch)

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusServiceUnavailable, lerr.Status)
	assert.Equal(t, []WindowResult{
		{Endpoint: domain.EndpointArrivals, Status: http.StatusServiceUnavailable, Body: json.RawMessage(`{"title":"unavailable"}`)},
		{Endpoint: domain.EndpointScheduledArrivals, Status: http.StatusOK},
	}, lerr.Windows)

	var upErr *aeroapi.UpstreamError
	assert.True(t, errors.As(err, &upErr))
}

func TestFlightService_Lookup_WorseStatusWins(t *testing.T) {
	source := &MockFlightSource{}

	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{}, &aeroapi.UpstreamError{
		Kind:   domain.EndpointArrivals,
		Status: http.StatusBadGateway,
		Detail: "dial tcp: connection refused",
		Cause:  errors.New("dial tcp: connection refused"),
	}).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{}, &aeroapi.UpstreamError{
		Kind:   domain.EndpointScheduledArrivals,
		Status: http.StatusTooManyRequests,
		Detail: "rate limited",
	}).Once()

	_, err := newTestService(source).Lookup(context.Background(), LookupInput{Airport: "EDDK"})

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusBadGateway, lerr.Status)
	require.Len(t, lerr.Windows, 2)
	assert.Equal(t, "dial tcp: connection refused", lerr.Windows[0].Detail)
	assert.Equal(t, "rate limited", lerr.Windows[1].Detail)
	assert.Contains(t, lerr.Error(), "status 502")
}

func TestFlightService_Lookup_UntypedSourceErrorIsBadGateway(t *testing.T) {
	source := &MockFlightSource{}
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{}, nil).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{}, errors.New("boom")).Once()

	_, err := newTestService(source).Lookup(context.Background(), LookupInput{Airport: "EDDK"})

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusBadGateway, lerr.Status)
	assert.Equal(t, WindowResult{Endpoint: domain.EndpointScheduledArrivals, Status: http.StatusBadGateway, Detail: "boom"}, lerr.Windows[1])
}

func TestFlightService_Lookup_DegradedWindowKeepsOtherHalf(t *testing.T) {
	source := &MockFlightSource{}
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{Degraded: true}, nil).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[{"fa_flight_id": "s1", "scheduled_in": "2025-01-01T13:00:00Z"}]`),
	}, nil).Once()

	batch, err := newTestService(source).Lookup(context.Background(), LookupInput{Airport: "EDDK"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, ids(batch.Flights))
	assert.Equal(t, []domain.EndpointKind{domain.EndpointArrivals}, batch.Meta.Degraded)
	assert.Equal(t, 0, batch.Meta.Arrived)
}

func TestFlightService_Lookup_ActiveOnly(t *testing.T) {
	newSource := func() *MockFlightSource {
		source := &MockFlightSource{}
		source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{
			Flights: rawList(t, `[{"fa_flight_id": "landed", "actual_in": "2025-01-01T10:00:00Z"}]`),
		}, nil)
		source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{
			Flights: rawList(t, `[{"fa_flight_id": "soon", "scheduled_in": "2025-01-01T13:00:00Z"}]`),
		}, nil)
		return source
	}

	service := NewFlightService(newSource(), "secret", DefaultWindowPolicy(), true, WithClock(func() time.Time { return testNow }))
	batch, err := service.Lookup(context.Background(), LookupInput{Airport: "EDDK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"soon"}, ids(batch.Flights))
	assert.True(t, batch.Meta.ActiveOnly)

	off := false
	batch, err = service.Lookup(context.Background(), LookupInput{Airport: "EDDK", ActiveOnly: &off})
	require.NoError(t, err)
	assert.Equal(t, []string{"landed", "soon"}, ids(batch.Flights))
}

func TestFlightService_Lookup_ValidationSkipsUpstream(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		airport string
		wantErr error
	}{
		{name: "missing airport", apiKey: "secret", airport: "", wantErr: ErrMissingAirport},
		{name: "blank airport", apiKey: "secret", airport: "   ", wantErr: ErrMissingAirport},
		{name: "invalid airport", apiKey: "secret", airport: "ED/DK", wantErr: ErrInvalidAirport},
		{name: "too long", apiKey: "secret", airport: "EDDKX", wantErr: ErrInvalidAirport},
		{name: "missing credentials", apiKey: "", airport: "EDDK", wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &MockFlightSource{}
			service := NewFlightService(source, tt.apiKey, DefaultWindowPolicy(), false)

			batch, err := service.Lookup(context.Background(), LookupInput{Airport: tt.airport})

			assert.Nil(t, batch)
			assert.ErrorIs(t, err, tt.wantErr)
			source.AssertNumberOfCalls(t, "FetchFlights", 0)
		})
	}
}

func TestFlightService_Lookup_IgnoresCallerCancellation(t *testing.T) {
	source := &MockFlightSource{}
	source.On("FetchFlights", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(aeroapi.FetchResult{}, nil).Twice()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(source).Lookup(ctx, LookupInput{Airport: "EDDK"})
	require.NoError(t, err)
	source.AssertExpectations(t)
}

func TestFlightService_Lookup_PublishesEvents(t *testing.T) {
	source := &MockFlightSource{}
	producer := &MockProducer{}

	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[{"fa_flight_id": "a1", "actual_in": "2025-01-01T10:00:00Z"}]`),
	}, nil).Once()
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointScheduledArrivals)).Return(aeroapi.FetchResult{Degraded: true}, nil).Once()

	producer.On("Publish", mock.Anything, "flight-lookups", "EDDK", mock.MatchedBy(func(e kafka.LookupEvent) bool {
		return e.Outcome == kafka.OutcomeOK &&
			e.Status == http.StatusOK &&
			e.RequestID == "req-1" &&
			e.Arrived == 1 &&
			e.Total == 1 &&
			len(e.Degraded) == 1 && e.Degraded[0] == "scheduled_arrivals" &&
			e.WindowStart.Equal(testNow.Add(-12*time.Hour)) &&
			e.WindowEnd.Equal(testNow.Add(12*time.Hour))
	})).Return(errors.New("broker down")).Once()

	service := newTestService(source, WithEventProducer(producer, "flight-lookups"))
	batch, err := service.Lookup(context.Background(), LookupInput{Airport: "EDDK", RequestID: "req-1"})

	// a failed publish does not fail the lookup
	require.NoError(t, err)
	assert.Len(t, batch.Flights, 1)
	producer.AssertExpectations(t)
}

func TestFlightService_Lookup_PublishesFailures(t *testing.T) {
	source := &MockFlightSource{}
	producer := &MockProducer{}

	source.On("FetchFlights", mock.Anything, mock.Anything).Return(aeroapi.FetchResult{}, &aeroapi.UpstreamError{Status: http.StatusUnauthorized}).Twice()
	producer.On("Publish", mock.Anything, "flight-lookups", "EDDK", mock.MatchedBy(func(e kafka.LookupEvent) bool {
		return e.Outcome == kafka.OutcomeUpstreamError && e.Status == http.StatusUnauthorized
	})).Return(nil).Once()

	_, err := newTestService(source, WithEventProducer(producer, "flight-lookups")).Lookup(context.Background(), LookupInput{Airport: "EDDK"})
	assert.Error(t, err)
	producer.AssertExpectations(t)
}

func TestFlightService_LookupWindow_Arrivals(t *testing.T) {
	source := &MockFlightSource{}
	source.On("FetchFlights", mock.Anything, mock.MatchedBy(func(q domain.UpstreamQuery) bool {
		return q.Kind == domain.EndpointArrivals &&
			q.Airport == "EDDK" &&
			q.Window == domain.TimeWindow{Start: testNow.Add(-12 * time.Hour), End: testNow}
	})).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[
			{"fa_flight_id": "a1", "actual_in": "2025-01-01T10:00:00Z"},
			{"ident": "EWG2", "estimated_in": "2025-01-01T11:00:00Z"}
		]`),
	}, nil).Once()

	// the service-wide active-only default does not apply to a single window
	service := NewFlightService(source, "secret", DefaultWindowPolicy(), true, WithClock(func() time.Time { return testNow }))
	batch, err := service.LookupWindow(context.Background(), LookupInput{Airport: "eddk", User: "hakan"}, domain.EndpointArrivals)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "arrivals-1"}, ids(batch.Flights))
	assert.Equal(t, domain.FlightStatusLanded, batch.Flights[0].Status)
	assert.Equal(t, domain.FlightStatusDelayed, batch.Flights[1].Status)
	assert.Equal(t, 2, batch.Meta.Total)
	assert.Equal(t, 2, batch.Meta.Arrived)
	assert.Equal(t, 0, batch.Meta.Scheduled)
	assert.False(t, batch.Meta.ActiveOnly)
	assert.Equal(t, "AeroAPI (arrivals)", batch.Meta.Source)
	source.AssertExpectations(t)
}

func TestFlightService_LookupWindow_ScheduledActiveOnly(t *testing.T) {
	source := &MockFlightSource{}
	source.On("FetchFlights", mock.Anything, mock.MatchedBy(func(q domain.UpstreamQuery) bool {
		return q.Kind == domain.EndpointScheduledArrivals &&
			q.Window == domain.TimeWindow{Start: testNow, End: testNow.Add(12 * time.Hour)}
	})).Return(aeroapi.FetchResult{
		Flights: rawList(t, `[
			{"fa_flight_id": "landed", "actual_in": "2025-01-01T11:59:00Z"},
			{"fa_flight_id": "soon", "scheduled_in": "2025-01-01T13:00:00Z"}
		]`),
		Degraded: false,
	}, nil).Once()

	on := true
	batch, err := newTestService(source).LookupWindow(context.Background(), LookupInput{Airport: "EDDK", ActiveOnly: &on}, domain.EndpointScheduledArrivals)
	require.NoError(t, err)

	assert.Equal(t, []string{"soon"}, ids(batch.Flights))
	assert.Equal(t, 0, batch.Meta.Arrived)
	assert.Equal(t, 2, batch.Meta.Scheduled)
	assert.Equal(t, "AeroAPI (scheduled_arrivals)", batch.Meta.Source)
}

func TestFlightService_LookupWindow_UpstreamError(t *testing.T) {
	source := &MockFlightSource{}
	producer := &MockProducer{}

	upErr := &aeroapi.UpstreamError{Kind: domain.EndpointArrivals, Status: http.StatusUnauthorized, Detail: "bad key"}
	source.On("FetchFlights", mock.Anything, isKind(domain.EndpointArrivals)).Return(aeroapi.FetchResult{}, upErr).Once()
	producer.On("Publish", mock.Anything, "flight-lookups", "EDDK", mock.MatchedBy(func(e kafka.LookupEvent) bool {
		return e.Outcome == kafka.OutcomeUpstreamError && e.Status == http.StatusUnauthorized &&
			e.WindowEnd.Equal(testNow)
	})).Return(nil).Once()

	_, err := newTestService(source, WithEventProducer(producer, "flight-lookups")).
		LookupWindow(context.Background(), LookupInput{Airport: "EDDK"}, domain.EndpointArrivals)

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusUnauthorized, lerr.Status)
	assert.Equal(t, []WindowResult{{Endpoint: domain.EndpointArrivals, Status: http.StatusUnauthorized, Detail: "bad key"}}, lerr.Windows)

	var got *aeroapi.UpstreamError
	require.True(t, errors.As(err, &got))
	assert.Same(t, upErr, got)
	producer.AssertExpectations(t)
}

func TestFlightService_LookupWindow_Validation(t *testing.T) {
	source := &MockFlightSource{}
	service := newTestService(source)

	_, err := service.LookupWindow(context.Background(), LookupInput{Airport: " "}, domain.EndpointArrivals)
	assert.ErrorIs(t, err, ErrMissingAirport)

	_, err = service.LookupWindow(context.Background(), LookupInput{Airport: "EDDK"}, domain.EndpointKind("departures"))
	assert.ErrorIs(t, err, ErrUnknownEndpoint)

	source.AssertNumberOfCalls(t, "FetchFlights", 0)
}
