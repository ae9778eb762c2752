package model

import "time"

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryCommand     EntryKind = "command"
	EntryWorkTime    EntryKind = "worktime"
	EntryPrivate     EntryKind = "private"
	EntryBreak       EntryKind = "break"
	EntryError       EntryKind = "error"
	EntryPerformance EntryKind = "performance"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryCommand, EntryWorkTime, EntryPrivate, EntryBreak, EntryError, EntryPerformance:
		return true
	}
	return false
}

// LedgerEntry is a single block in a day's ledger file. Entries are append-only.
type LedgerEntry struct {
	Time    time.Time         `json:"time"`
	Kind    EntryKind         `json:"kind"`
	ActorID string            `json:"actor_id"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Date returns the UTC calendar date the entry is partitioned under.
func (e LedgerEntry) Date() string {
	return e.Time.UTC().Format(DateLayout)
}

// DateLayout is the layout used for per-day file names.
const DateLayout = "2006-01-02"
