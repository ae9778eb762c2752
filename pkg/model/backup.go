package model

import "time"

// BackupSnapshot describes a stored pre-change copy of a file.
type BackupSnapshot struct {
	SourcePath   string    `json:"source_path"`
	SnapshotPath string    `json:"snapshot_path"`
	ContentHash  HashValue `json:"content_hash"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot is past its retention at now.
func (s *BackupSnapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SweepResult summarizes a retention sweep.
type SweepResult struct {
	Examined int      `json:"examined"`
	Deleted  []string `json:"deleted"`
	Failed   []string `json:"failed,omitempty"`
}
