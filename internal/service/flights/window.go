package flights

import (
	"time"

	"github.com/Domenick1991/flightstat/config"
	"github.com/Domenick1991/flightstat/internal/domain"
)

// WindowPolicy controls how far back and ahead the upstream is queried.
// LowerBound and UpperBound are offsets from now that no window may cross.
type WindowPolicy struct {
	Lookback   time.Duration
	Lookahead  time.Duration
	LowerBound time.Duration
	UpperBound time.Duration
	RepairStep time.Duration
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		Lookback:   12 * time.Hour,
		Lookahead:  12 * time.Hour,
		LowerBound: -10 * 24 * time.Hour,
		UpperBound: 2 * 24 * time.Hour,
		RepairStep: time.Minute,
	}
}

func WindowPolicyFromConfig(cfg config.WindowConfig) WindowPolicy {
	return WindowPolicy{
		Lookback:   cfg.Lookback,
		Lookahead:  cfg.Lookahead,
		LowerBound: cfg.LowerBound,
		UpperBound: cfg.UpperBound,
		RepairStep: cfg.RepairStep,
	}
}

// Clamp moves rawStart and rawEnd into [now+lowerBound, now+upperBound].
// A collapsed or inverted result is not rejected: it is repaired into
// [end, end+repairStep] so that the caller always gets a usable window.
func Clamp(now, rawStart, rawEnd time.Time, lowerBound, upperBound, repairStep time.Duration) domain.TimeWindow {
	lo, hi := now.Add(lowerBound), now.Add(upperBound)
	start := clampTime(rawStart, lo, hi)
	end := clampTime(rawEnd, lo, hi)

	if !start.Before(end) {
		if repairStep <= 0 {
			repairStep = time.Minute
		}
		start = end
		end = end.Add(repairStep)
	}
	return domain.TimeWindow{Start: start, End: end}
}

func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// ArrivedWindow covers the recent past and never ends after now.
func (p WindowPolicy) ArrivedWindow(now time.Time) domain.TimeWindow {
	return p.clamp(now, now.Add(-p.Lookback), now)
}

// ScheduledWindow covers the near future and never starts before now.
func (p WindowPolicy) ScheduledWindow(now time.Time) domain.TimeWindow {
	return p.clamp(now, now, now.Add(p.Lookahead))
}

func (p WindowPolicy) clamp(now, rawStart, rawEnd time.Time) domain.TimeWindow {
	return Clamp(now, rawStart, rawEnd, p.LowerBound, p.UpperBound, p.RepairStep)
}
