package model

import "time"

// WorkSession tracks continuous activity for one actor.
type WorkSession struct {
	ActorID           string    `json:"actor_id"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	CumulativeMinutes float64   `json:"cumulative_minutes"`
}

// IsIdle reports whether the session has been inactive longer than timeout.
func (s *WorkSession) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}

// ViolationKind identifies a performance policy rule.
type ViolationKind string

const (
	ViolationOvertime   ViolationKind = "overtime"
	ViolationEfficiency ViolationKind = "efficiency"
)

// PolicyViolation is an expected, non-fatal policy outcome.
type PolicyViolation struct {
	Kind      ViolationKind `json:"kind"`
	ActorID   string        `json:"actor_id"`
	Observed  float64       `json:"observed"`
	Threshold float64       `json:"threshold"`
	Message   string        `json:"message"`
}
