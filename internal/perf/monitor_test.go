package perf_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/warden/internal/ledger"
	"github.com/jvs-project/warden/internal/perf"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/model"
)

func newMonitor(t *testing.T) (*perf.Monitor, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(filepath.Join(t.TempDir(), "ledger"), ledger.Options{})
	return perf.NewMonitor(perf.ThresholdsFromConfig(config.Default().Performance), l), l
}

func session(minutes float64) *model.WorkSession {
	return &model.WorkSession{ActorID: "alice", CumulativeMinutes: minutes}
}

func TestEvaluate_OvertimeOnly(t *testing.T) {
	m, _ := newMonitor(t)

	got := m.Evaluate(session(500), perf.Sample{})
	require.Len(t, got, 1)
	assert.Equal(t, model.ViolationOvertime, got[0].Kind)
	assert.Equal(t, 500.0, got[0].Observed)
	assert.Equal(t, 480.0, got[0].Threshold)
	assert.Equal(t, "alice", got[0].ActorID)
}

func TestEvaluate_Boundaries(t *testing.T) {
	m, _ := newMonitor(t)

	assert.Empty(t, m.Evaluate(session(480), perf.Sample{}))
	assert.Empty(t, m.Evaluate(session(10), perf.Efficiency(70)))
	assert.Len(t, m.Evaluate(session(480.5), perf.Sample{}), 1)
	assert.Len(t, m.Evaluate(session(10), perf.Efficiency(69)), 1)
}

func TestEvaluate_UnreportedEfficiencyIgnored(t *testing.T) {
	m, _ := newMonitor(t)
	assert.Empty(t, m.Evaluate(session(10), perf.Sample{EfficiencyPercent: 0}))
}

func TestEvaluate_BothRules(t *testing.T) {
	m, _ := newMonitor(t)

	got := m.Evaluate(session(600), perf.Efficiency(40))
	require.Len(t, got, 2)
	assert.Equal(t, model.ViolationOvertime, got[0].Kind)
	assert.Equal(t, model.ViolationEfficiency, got[1].Kind)
}

func TestEvaluate_NilSession(t *testing.T) {
	m, _ := newMonitor(t)
	assert.Empty(t, m.Evaluate(nil, perf.Efficiency(1)))
}

func TestCheck_RecordsLedgerEntries(t *testing.T) {
	m, l := newMonitor(t)

	violations, err := m.Check(context.Background(), session(500), perf.Efficiency(50))
	require.NoError(t, err)
	require.Len(t, violations, 2)

	entries, err := l.ReadPublic(time.Now().UTC().Format(model.DateLayout))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.EntryError, entries[0].Kind)
	assert.Equal(t, "overtime", entries[0].Fields["violation"])
	assert.Equal(t, "500.0", entries[0].Fields["observed"])

	assert.Equal(t, model.EntryPerformance, entries[1].Kind)
	assert.Equal(t, "efficiency", entries[1].Fields["violation"])
	assert.Equal(t, "70.0", entries[1].Fields["threshold"])
}
