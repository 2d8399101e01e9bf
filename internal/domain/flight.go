package domain

import "time"

type FlightStatus string

const (
	FlightStatusLanded    FlightStatus = "LANDED"
	FlightStatusEnRoute   FlightStatus = "EN_ROUTE"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusUnknown   FlightStatus = "UNKNOWN"
)

// Active reports whether the flight has not arrived yet.
func (s FlightStatus) Active() bool {
	switch s {
	case FlightStatusEnRoute, FlightStatusScheduled, FlightStatusDelayed:
		return true
	default:
		return false
	}
}

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusLanded, FlightStatusEnRoute, FlightStatusDelayed, FlightStatusScheduled, FlightStatusUnknown:
		return true
	default:
		return false
	}
}

type Airport struct {
	Code string `json:"code"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Flight is the canonical flight returned to clients. Its JSON keys are the
// ones RawFlight reads, so a serialized Flight normalizes back to itself.
type Flight struct {
	ID              string       `json:"id"`
	Ident           string       `json:"ident"`
	Callsign        string       `json:"callsign"`
	Operator        string       `json:"operator"`
	OperatorIATA    string       `json:"operator_iata"`
	AircraftType    string       `json:"aircraft_type"`
	Registration    string       `json:"registration"`
	Origin          Airport      `json:"origin"`
	Destination     Airport      `json:"destination"`
	ScheduledIn     *time.Time   `json:"scheduled_in"`
	EstimatedIn     *time.Time   `json:"estimated_in"`
	ActualIn        *time.Time   `json:"actual_in"`
	Status          FlightStatus `json:"status"`
	ProgressPercent int          `json:"progress_percent"`
	Source          EndpointKind `json:"source"`
}

type BatchMeta struct {
	Total      int            `json:"total"`
	Arrived    int            `json:"arrived"`
	Scheduled  int            `json:"scheduled"`
	Airport    string         `json:"airport"`
	User       string         `json:"user,omitempty"`
	ActiveOnly bool           `json:"active_only"`
	Degraded   []EndpointKind `json:"degraded,omitempty"`
	Source     string         `json:"source"`
	Timestamp  time.Time      `json:"timestamp"`
}

type FlightBatch struct {
	Flights []Flight  `json:"flights"`
	Meta    BatchMeta `json:"meta"`
}
