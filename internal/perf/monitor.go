// Package perf compares work sessions against the configured thresholds and
// annotates the ledger with any violations. It never ends a session.
package perf

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jvs-project/warden/internal/ledger"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/model"
)

// Thresholds are the two performance rules.
type Thresholds struct {
	MaxContinuousMinutes int
	MinEfficiencyPercent int
}

// ThresholdsFromConfig reads the performance block.
func ThresholdsFromConfig(cfg config.PerformanceConfig) Thresholds {
	return Thresholds{
		MaxContinuousMinutes: cfg.MaxContinuousMinutes,
		MinEfficiencyPercent: cfg.MinEfficiencyPercent,
	}
}

// Sample is the caller-supplied efficiency signal. Efficiency is not
// computed here; an unreported sample never produces a violation.
type Sample struct {
	EfficiencyPercent int
	Reported          bool
}

// Efficiency builds a reported sample.
func Efficiency(percent int) Sample {
	return Sample{EfficiencyPercent: percent, Reported: true}
}

// Monitor evaluates sessions and records violations.
type Monitor struct {
	th     Thresholds
	ledger *ledger.Ledger
}

// NewMonitor creates a monitor writing to l.
func NewMonitor(th Thresholds, l *ledger.Ledger) *Monitor {
	return &Monitor{th: th, ledger: l}
}

// Evaluate applies both rules independently.
func (m *Monitor) Evaluate(s *model.WorkSession, sample Sample) []model.PolicyViolation {
	if s == nil {
		return nil
	}
	var out []model.PolicyViolation

	if max := float64(m.th.MaxContinuousMinutes); s.CumulativeMinutes > max {
		out = append(out, model.PolicyViolation{
			Kind:      model.ViolationOvertime,
			ActorID:   s.ActorID,
			Observed:  s.CumulativeMinutes,
			Threshold: max,
			Message: fmt.Sprintf("continuous work of %.0f minutes exceeds the %d minute limit",
				s.CumulativeMinutes, m.th.MaxContinuousMinutes),
		})
	}

	if sample.Reported && sample.EfficiencyPercent < m.th.MinEfficiencyPercent {
		out = append(out, model.PolicyViolation{
			Kind:      model.ViolationEfficiency,
			ActorID:   s.ActorID,
			Observed:  float64(sample.EfficiencyPercent),
			Threshold: float64(m.th.MinEfficiencyPercent),
			Message: fmt.Sprintf("efficiency %d%% is below the %d%% minimum",
				sample.EfficiencyPercent, m.th.MinEfficiencyPercent),
		})
	}
	return out
}

// Record appends one ledger entry per violation: overtime as an error entry,
// efficiency as a performance entry. Every violation is attempted; the first
// failure is returned.
func (m *Monitor) Record(ctx context.Context, violations []model.PolicyViolation) error {
	var firstErr error
	for _, v := range violations {
		if err := m.ledger.Append(ctx, entryFor(v)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("record %s violation: %w", v.Kind, err)
		}
	}
	return firstErr
}

// Check evaluates s and records the result.
func (m *Monitor) Check(ctx context.Context, s *model.WorkSession, sample Sample) ([]model.PolicyViolation, error) {
	violations := m.Evaluate(s, sample)
	return violations, m.Record(ctx, violations)
}

func entryFor(v model.PolicyViolation) model.LedgerEntry {
	kind := model.EntryPerformance
	if v.Kind == model.ViolationOvertime {
		kind = model.EntryError
	}
	return model.LedgerEntry{
		Kind:    kind,
		ActorID: v.ActorID,
		Fields: map[string]string{
			"violation": string(v.Kind),
			"observed":  strconv.FormatFloat(v.Observed, 'f', 1, 64),
			"threshold": strconv.FormatFloat(v.Threshold, 'f', 1, 64),
			"message":   v.Message,
		},
	}
}
