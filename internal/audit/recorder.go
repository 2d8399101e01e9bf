package audit

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/flightstat/internal/kafka"
	"github.com/Domenick1991/flightstat/internal/metrics"
)

// Recorder turns consumed lookup events into log lines and per-airport
// counters.
type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) Record(ctx context.Context, event kafka.LookupEvent) error {
	metrics.AuditedLookups.WithLabelValues(event.Airport, event.Outcome).Inc()

	level := slog.LevelInfo
	if event.Outcome != kafka.OutcomeOK {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "lookup audited",
		"request_id", event.RequestID,
		"airport", event.Airport,
		"user", event.User,
		"outcome", event.Outcome,
		"status", event.Status,
		"total", event.Total,
		"arrived", event.Arrived,
		"scheduled", event.Scheduled,
		"degraded", event.Degraded,
		"window_start", event.WindowStart,
		"window_end", event.WindowEnd,
		"at", event.At,
	)
	return nil
}
