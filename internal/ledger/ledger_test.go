package ledger_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/ledger"
	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/fsutil"
	"github.com/jvs-project/warden/pkg/model"
)

var fixedTime = time.Date(2026, 10, 19, 14, 3, 5, 0, time.UTC)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(t.TempDir(), ledger.Options{LockTimeout: time.Second, RetryBackoff: time.Millisecond})
}

func TestFormatEntry_Golden(t *testing.T) {
	entry := model.LedgerEntry{
		Time:    fixedTime,
		Kind:    model.EntryCommand,
		ActorID: "alice",
		Fields: map[string]string{
			"payload": "line one\nline two",
			"event":   "prompt",
			"intent":  "completion",
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "command_entry", ledger.FormatEntry(entry))
}

func TestParseEntries_RoundTrip(t *testing.T) {
	in := []model.LedgerEntry{
		{Time: fixedTime, Kind: model.EntryCommand, ActorID: "alice", Fields: map[string]string{"payload": "a\nb\\c\r", "key:colon": "v"}},
		{Time: fixedTime.Add(time.Minute), Kind: model.EntryError, ActorID: "bob", Fields: map[string]string{"error": ""}},
		{Time: fixedTime.Add(2 * time.Minute), Kind: model.EntryBreak, ActorID: "carol"},
	}
	var buf bytes.Buffer
	for _, e := range in {
		buf.Write(ledger.FormatEntry(e))
	}

	out, err := ledger.ParseEntries(&buf)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "a\nb\\c\r", out[0].Fields["payload"])
	assert.Equal(t, "v", out[0].Fields["key_colon"])
	assert.Equal(t, "", out[1].Fields["error"])
	assert.Equal(t, model.EntryBreak, out[2].Kind)
	assert.True(t, out[2].Time.Equal(fixedTime.Add(2*time.Minute)))
}

func TestParseEntries_SkipsMalformedBlocks(t *testing.T) {
	text := "## not-a-time | command | x\nfoo: bar\n\n" +
		"## 2026-10-19T14:03:05Z | bogus | x\nfoo: bar\n\n" +
		"## 2026-10-19T14:03:05Z | command | ok\nfoo: bar\n\n"

	out, err := ledger.ParseEntries(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ActorID)
	assert.Equal(t, "bar", out[0].Fields["foo"])
}

func TestLedger_AppendPublic(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryCommand, ActorID: "alice", Fields: map[string]string{"event": "prompt"}}))
	require.NoError(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryWorkTime, ActorID: "alice", Fields: map[string]string{"minutes": "42"}}))

	entries, err := l.ReadPublic("2026-10-19")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryCommand, entries[0].Kind)
	assert.Equal(t, "42", entries[1].Fields["minutes"])
}

func TestLedger_PartitionsByDate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryCommand, ActorID: "a"}))
	require.NoError(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime.Add(24 * time.Hour), Kind: model.EntryCommand, ActorID: "a"}))

	assert.FileExists(t, l.PublicPath("2026-10-19"))
	assert.FileExists(t, l.PublicPath("2026-10-20"))

	day1, err := l.ReadPublic("2026-10-19")
	require.NoError(t, err)
	assert.Len(t, day1, 1)
}

func TestLedger_ReadPublic_Missing(t *testing.T) {
	l := newLedger(t)
	entries, err := l.ReadPublic("1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_AppendRejectsInvalid(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	assert.Error(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: "gossip", ActorID: "a"}))
	assert.Error(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryCommand}))
}

// Separate Ledger values hold separate file descriptors, so their flocks
// contend exactly as separate hook processes would.
func TestLedger_ConcurrentWritersNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	const writers = 16
	payload := strings.Repeat("x", 8192)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			l := ledger.New(dir, ledger.Options{LockTimeout: 5 * time.Second})
			err := l.Append(context.Background(), model.LedgerEntry{
				Time:    fixedTime,
				Kind:    model.EntryCommand,
				ActorID: fmt.Sprintf("agent-%d", idx),
				Fields:  map[string]string{"payload": payload, "idx": fmt.Sprint(idx)},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	l := ledger.New(dir, ledger.Options{})
	entries, err := l.ReadPublic("2026-10-19")
	require.NoError(t, err)
	require.Len(t, entries, writers)

	seen := make(map[string]bool)
	for _, e := range entries {
		assert.Equal(t, payload, e.Fields["payload"], "entry %s corrupted", e.ActorID)
		assert.Equal(t, "agent-"+e.Fields["idx"], e.ActorID)
		seen[e.ActorID] = true
	}
	assert.Len(t, seen, writers)
}

func TestLedger_LockTimeout(t *testing.T) {
	dir := t.TempDir()
	l := ledger.New(dir, ledger.Options{LockTimeout: 30 * time.Millisecond, RetryBackoff: time.Millisecond})
	ctx := context.Background()

	holder, err := fsutil.OpenLocked(ctx, l.PublicPath("2026-10-19"), os.O_CREATE|os.O_WRONLY, 0644, time.Second)
	require.NoError(t, err)
	defer holder.Close()

	err = l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryCommand, ActorID: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrLockTimeout)
}

func TestLedger_LockTimeoutIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	l := ledger.New(dir, ledger.Options{LockTimeout: 300 * time.Millisecond, RetryBackoff: time.Millisecond})
	ctx := context.Background()

	holder, err := fsutil.OpenLocked(ctx, l.PublicPath("2026-10-19"), os.O_CREATE|os.O_WRONLY, 0644, time.Second)
	require.NoError(t, err)
	defer holder.Close()

	start := time.Now()
	err = l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryCommand, ActorID: "alice"})
	elapsed := time.Since(start)
	require.ErrorIs(t, err, errclass.ErrLockTimeout)
	assert.Less(t, elapsed, 550*time.Millisecond, "waited more than one lock timeout")
}

func TestLedger_PrivateEntryIsWriteOnly(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	err := l.Append(ctx, model.LedgerEntry{
		Time:    fixedTime,
		Kind:    model.EntryPrivate,
		ActorID: "alice",
		Fields:  map[string]string{"note": "I skipped the flaky test"},
	})
	require.NoError(t, err)

	info, err := os.Stat(l.PrivateDir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0333), info.Mode().Perm())

	fileInfo, err := os.Stat(l.PrivatePath("2026-10-19"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0222), fileInfo.Mode().Perm())

	// The public channel only carries the stub.
	public, err := l.ReadPublic("2026-10-19")
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, model.EntryPrivate, public[0].Kind)
	assert.Equal(t, ledger.StubNote("alice"), public[0].Fields["note"])
	raw, err := os.ReadFile(l.PublicPath("2026-10-19"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "flaky")

	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	_, err = os.ReadDir(l.PrivateDir())
	assert.ErrorIs(t, err, os.ErrPermission)
	_, err = os.ReadFile(l.PrivatePath("2026-10-19"))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestLedger_PrivateAppendsAccumulate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(ctx, model.LedgerEntry{Time: fixedTime, Kind: model.EntryPrivate, ActorID: "bob", Fields: map[string]string{"note": "n"}}))
	}

	public, err := l.ReadPublic("2026-10-19")
	require.NoError(t, err)
	assert.Len(t, public, 3)
}
