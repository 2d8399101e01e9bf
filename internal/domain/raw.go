package domain

import (
	"encoding/json"
	"math"
	"time"
)

// RawFlight is one upstream flight record. Every field is optional: the
// provider omits fields freely and their types are not guaranteed.
type RawFlight struct {
	FlightID        *string
	Ident           *string
	Operator        *string
	OperatorIATA    *string
	AircraftType    *string
	Registration    *string
	Origin          *RawAirport
	Destination     *RawAirport
	ScheduledIn     *time.Time
	EstimatedIn     *time.Time
	ActualIn        *time.Time
	ProgressPercent *float64
	Status          *string
}

type RawAirport struct {
	CodeIATA *string
	CodeICAO *string
	Code     *string
	Name     *string
	City     *string
}

// UnmarshalJSON never fails. Values of the wrong type, unparsable timestamps
// and non-object records decode as absent fields.
func (r *RawFlight) UnmarshalJSON(data []byte) error {
	*r = RawFlight{}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil
	}

	r.FlightID = firstString(fields, "fa_flight_id", "id")
	r.Ident = firstString(fields, "ident")
	r.Operator = firstString(fields, "operator")
	r.OperatorIATA = firstString(fields, "operator_iata")
	r.AircraftType = firstString(fields, "aircraft_type")
	r.Registration = firstString(fields, "registration")
	r.Origin = airportField(fields, "origin")
	r.Destination = airportField(fields, "destination")
	r.ScheduledIn = timeField(fields, "scheduled_in")
	r.EstimatedIn = timeField(fields, "estimated_in")
	r.ActualIn = timeField(fields, "actual_in")
	r.ProgressPercent = numberField(fields, "progress_percent")
	r.Status = firstString(fields, "status")
	return nil
}

func firstString(fields map[string]any, keys ...string) *string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

func airportField(fields map[string]any, key string) *RawAirport {
	obj, ok := fields[key].(map[string]any)
	if !ok {
		return nil
	}
	return &RawAirport{
		CodeIATA: firstString(obj, "code_iata"),
		CodeICAO: firstString(obj, "code_icao"),
		Code:     firstString(obj, "code"),
		Name:     firstString(obj, "name"),
		City:     firstString(obj, "city"),
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

func timeField(fields map[string]any, key string) *time.Time {
	s, ok := fields[key].(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func numberField(fields map[string]any, key string) *float64 {
	f, ok := fields[key].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
