// Package ledger implements the append-only activity ledger.
//
// Entries are partitioned by calendar date into one text file per day and
// channel:
//
//	ledger/public/2026-10-19.log   world-readable
//	ledger/private/2026-10-19.log  write-only
//
// Each entry is a self-contained block: a "## time | kind | actor" header,
// one "key: value" line per field (sorted by key) and a blank line. Values are
// escaped so a block can never contain a stray newline. A block is written
// with a single write call while holding an exclusive flock on the day file,
// then fsynced, so concurrent writers from separate processes never
// interleave.
//
// The private channel is a confessional: its directory is mode 0333 and its
// files 0222, so nobody, the writer included, can list or read entries back
// through normal access. This is a permission convention, not a security
// boundary; the owner (or root) can always chmod it back. Every private entry
// is paired with a content-free public stub so auditors can see that activity
// occurred.
package ledger
