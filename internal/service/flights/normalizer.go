package flights

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Domenick1991/flightstat/internal/domain"
)

const (
	defaultText         = "N/A"
	defaultOperator     = "Unknown"
	defaultOperatorIATA = "XX"
	defaultAirportCode  = "XXX"
	defaultAirportName  = "Unknown Airport"
	defaultCity         = "Unknown"
)

// Normalizer maps raw upstream records onto canonical flights. Status is
// computed against Now only, so one Normalizer gives the same answer for the
// same record every time.
type Normalizer struct {
	Now     time.Time
	Airport string
	// Logger, when set, receives the upstream status text at debug level.
	Logger *slog.Logger
}

func NewNormalizer(now time.Time, airport string) Normalizer {
	return Normalizer{Now: now, Airport: airport}
}

// NormalizeAll keeps input order. Records without an id get a placeholder
// built from kind and position, which is unique within one batch.
func (n Normalizer) NormalizeAll(raws []domain.RawFlight, kind domain.EndpointKind) []domain.Flight {
	flights := make([]domain.Flight, 0, len(raws))
	for i, raw := range raws {
		flights = append(flights, n.Normalize(raw, kind, i))
	}
	return flights
}

func (n Normalizer) Normalize(raw domain.RawFlight, kind domain.EndpointKind, seq int) domain.Flight {
	status := DeriveStatus(raw.ScheduledIn, raw.EstimatedIn, raw.ActualIn, n.Now)
	ident := orDefault(raw.Ident, defaultText)
	id := orDefault(raw.FlightID, fmt.Sprintf("%s-%d", kind, seq))

	if raw.Status != nil && n.Logger != nil {
		n.Logger.Debug("upstream status ignored",
			"id", id,
			"endpoint", kind,
			"upstream_status", *raw.Status,
			"status", status,
		)
	}

	return domain.Flight{
		ID:              id,
		Ident:           ident,
		Callsign:        ident,
		Operator:        orDefault(raw.Operator, defaultOperator),
		OperatorIATA:    orDefault(raw.OperatorIATA, defaultOperatorIATA),
		AircraftType:    orDefault(raw.AircraftType, defaultText),
		Registration:    orDefault(raw.Registration, defaultText),
		Origin:          airport(raw.Origin, defaultAirportCode),
		Destination:     airport(raw.Destination, n.Airport),
		ScheduledIn:     raw.ScheduledIn,
		EstimatedIn:     raw.EstimatedIn,
		ActualIn:        raw.ActualIn,
		Status:          status,
		ProgressPercent: progress(raw.ProgressPercent, status),
		Source:          kind,
	}
}

// DeriveStatus ignores any upstream status text. Priority is actual, then
// estimated, then scheduled arrival.
func DeriveStatus(scheduledIn, estimatedIn, actualIn *time.Time, now time.Time) domain.FlightStatus {
	switch {
	case actualIn != nil:
		return domain.FlightStatusLanded
	case estimatedIn != nil:
		if estimatedIn.After(now) {
			return domain.FlightStatusEnRoute
		}
		return domain.FlightStatusDelayed
	case scheduledIn != nil:
		if scheduledIn.After(now) {
			return domain.FlightStatusScheduled
		}
		return domain.FlightStatusDelayed
	default:
		return domain.FlightStatusUnknown
	}
}

func progress(raw *float64, status domain.FlightStatus) int {
	if raw == nil {
		if status == domain.FlightStatusLanded {
			return 100
		}
		return 0
	}
	// clamp before converting so huge values cannot overflow int
	return int(math.Round(max(0, min(100, *raw))))
}

func airport(raw *domain.RawAirport, fallbackCode string) domain.Airport {
	if fallbackCode == "" {
		fallbackCode = defaultAirportCode
	}
	if raw == nil {
		return domain.Airport{Code: fallbackCode, Name: defaultAirportName, City: defaultCity}
	}

	code := fallbackCode
	for _, c := range []*string{raw.CodeIATA, raw.CodeICAO, raw.Code} {
		if c != nil {
			code = *c
			break
		}
	}
	return domain.Airport{
		Code: code,
		Name: orDefault(raw.Name, defaultAirportName),
		City: orDefault(raw.City, defaultCity),
	}
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
