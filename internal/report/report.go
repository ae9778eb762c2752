// Package report summarizes one day of ledger and usage records by loading
// them into an in-memory SQLite database and aggregating with SQL.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jvs-project/warden/pkg/model"
)

// Count is one aggregate row.
type Count struct {
	Key string `json:"key"`
	N   int    `json:"n"`
}

// Report is the summary for one day.
type Report struct {
	Date     string  `json:"date"`
	Entries  int     `json:"entries"`
	ByKind   []Count `json:"by_kind"`
	ByActor  []Count `json:"by_actor"`
	ByIntent []Count `json:"by_intent"`
	ToolUses int     `json:"tool_uses"`
	ByTool   []Count `json:"by_tool"`
	// ByOutcome counts tool uses per snapshot outcome.
	ByOutcome []Count `json:"by_outcome"`
}

// Build aggregates entries and usage records for date.
func Build(ctx context.Context, date string, entries []model.LedgerEntry, usage []model.ToolInvocationRecord) (*Report, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}
	defer db.Close()
	// Every pooled connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := load(ctx, db, entries, usage); err != nil {
		return nil, err
	}

	r := &Report{Date: date}
	queries := []struct {
		dst   *[]Count
		query string
	}{
		{&r.ByKind, `SELECT kind, COUNT(*) FROM entries GROUP BY kind ORDER BY COUNT(*) DESC, kind`},
		{&r.ByActor, `SELECT actor, COUNT(*) FROM entries GROUP BY actor ORDER BY COUNT(*) DESC, actor`},
		{&r.ByIntent, `SELECT intent, COUNT(*) FROM entries WHERE intent IS NOT NULL GROUP BY intent ORDER BY COUNT(*) DESC, intent`},
		{&r.ByTool, `SELECT tool, COUNT(*) FROM tool_uses GROUP BY tool ORDER BY COUNT(*) DESC, tool`},
		{&r.ByOutcome, `SELECT outcome, COUNT(*) FROM tool_uses GROUP BY outcome ORDER BY COUNT(*) DESC, outcome`},
	}
	for _, q := range queries {
		counts, err := queryCounts(ctx, db, q.query)
		if err != nil {
			return nil, err
		}
		*q.dst = counts
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&r.Entries); err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_uses`).Scan(&r.ToolUses); err != nil {
		return nil, fmt.Errorf("count tool uses: %w", err)
	}
	return r, nil
}

func load(ctx context.Context, db *sql.DB, entries []model.LedgerEntry, usage []model.ToolInvocationRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (at, kind, actor, event, intent) VALUES (?, ?, ?, ?, ?)`,
			e.Time.UTC().Format(time.RFC3339Nano), string(e.Kind), e.ActorID,
			nullable(e.Fields["event"]), nullable(e.Fields["intent"]))
		if err != nil {
			return fmt.Errorf("load: insert entry: %w", err)
		}
	}
	for _, u := range usage {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tool_uses (at, actor, tool, target, outcome) VALUES (?, ?, ?, ?, ?)`,
			u.Timestamp.UTC().Format(time.RFC3339Nano), u.ActorID, u.ToolName,
			nullable(u.TargetPath), u.Outcome)
		if err != nil {
			return fmt.Errorf("load: insert tool use: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load: commit: %w", err)
	}
	return nil
}

func queryCounts(ctx context.Context, db *sql.DB, query string) ([]Count, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.N); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
