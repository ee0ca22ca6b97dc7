package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	require.NoError(t, l.StartSession(ctx, "s1", `{"models":{}}`))
	s, err := l.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusActive, s.Status)
	assert.Nil(t, s.EndedAt)
	assert.False(t, s.StartedAt.IsZero())

	require.NoError(t, l.EndSession(ctx, "s1", SessionStatusShutdown))
	s, err = l.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusShutdown, s.Status)
	require.NotNil(t, s.EndedAt)

	assert.ErrorIs(t, l.EndSession(ctx, "missing", SessionStatusShutdown), ErrSessionNotFound)
	_, err = l.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordAndQueryRuns(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, l.Record(ctx, Run{SessionID: "s1", Operation: OperationPlan, Outcome: OutcomeOK, PromptChars: 42,
		StartedAt: base, Duration: 1500 * time.Millisecond}))
	require.NoError(t, l.Record(ctx, Run{SessionID: "s1", Operation: OperationDispatch, Agent: "SLIDE_MASTER",
		Outcome: OutcomeError, ErrorType: "malformed_output", Error: "bad json", StartedAt: base.Add(time.Second)}))
	require.NoError(t, l.Record(ctx, Run{SessionID: "s2", Operation: OperationEdit, Outcome: OutcomeOK,
		StartedAt: base.Add(2 * time.Second)}))

	runs, err := l.SessionRuns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, OperationPlan, runs[0].Operation)
	assert.Equal(t, 42, runs[0].PromptChars)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].StartedAt.Equal(base))
	assert.NotEmpty(t, runs[0].ID)
	assert.Equal(t, "malformed_output", runs[1].ErrorType)

	recent, err := l.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, OperationEdit, recent[0].Operation)
	assert.Equal(t, OperationDispatch, recent[1].Operation)
}

func TestRecordRejectsUnknownOperation(t *testing.T) {
	l := openTestLedger(t)
	err := l.Record(context.Background(), Run{SessionID: "s", Operation: "delete", Outcome: OutcomeOK})
	assert.Error(t, err)
}

func TestEmptyLedgerReturnsEmptySlice(t *testing.T) {
	runs, err := openTestLedger(t).RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestReopenKeepsSchemaAndRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Run{SessionID: "s", Operation: OperationRevise, Outcome: OutcomeOK}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	version, err := GetSchemaVersion(l.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	runs, err := l.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
