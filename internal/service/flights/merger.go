package flights

import (
	"time"

	"github.com/Domenick1991/flightstat/internal/domain"
)

const batchSource = "AeroAPI (arrivals+scheduled_arrivals)"

type MergeOptions struct {
	Airport    string
	User       string
	ActiveOnly bool
	Degraded   []domain.EndpointKind
	Timestamp  time.Time
}

// Merge appends scheduled flights after arrived ones without re-sorting. An id
// already present in the arrived half wins over its scheduled duplicate.
// Arrived and Scheduled in the metadata are the raw per-endpoint counts.
func Merge(arrived, scheduled []domain.Flight, opts MergeOptions) domain.FlightBatch {
	seen := make(map[string]struct{}, len(arrived))
	merged := make([]domain.Flight, 0, len(arrived)+len(scheduled))

	for _, f := range arrived {
		seen[f.ID] = struct{}{}
		merged = append(merged, f)
	}
	for _, f := range scheduled {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		merged = append(merged, f)
	}

	if opts.ActiveOnly {
		merged = activeOnly(merged)
	}

	return domain.FlightBatch{
		Flights: merged,
		Meta: domain.BatchMeta{
			Total:      len(merged),
			Arrived:    len(arrived),
			Scheduled:  len(scheduled),
			Airport:    opts.Airport,
			User:       opts.User,
			ActiveOnly: opts.ActiveOnly,
			Degraded:   opts.Degraded,
			Source:     batchSource,
			Timestamp:  opts.Timestamp,
		},
	}
}

func activeOnly(flights []domain.Flight) []domain.Flight {
	out := flights[:0]
	for _, f := range flights {
		if f.Status.Active() {
			out = append(out, f)
		}
	}
	return out
}
