package domain

import "time"

// EndpointKind names one of the two upstream queries. The value is also the
// upstream path segment and the envelope key of its response.
type EndpointKind string

const (
	EndpointArrivals          EndpointKind = "arrivals"
	EndpointScheduledArrivals EndpointKind = "scheduled_arrivals"
)

// TimeWindow is a half-open interval [Start, End). Start is always before End.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Valid() bool {
	return w.Start.Before(w.End)
}

type UpstreamQuery struct {
	Airport string
	Window  TimeWindow
	Kind    EndpointKind
	APIKey  string
}
