package model

import "time"

// PendingReviewEntry is one line in the pending-review store.
type PendingReviewEntry struct {
	UnitID   string    `json:"unit_id"`
	RaisedBy string    `json:"raised_by"`
	RaisedAt time.Time `json:"raised_at"`
	Reason   string    `json:"reason"`
}

// ReviewThresholdPolicy is process-wide quality configuration, read-only after load.
type ReviewThresholdPolicy struct {
	CoverageMinimum int  `json:"coverage_minimum"`
	BlockOnFailure  bool `json:"block_on_failure"`
	AutoReview      bool `json:"auto_review"`
}
