package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcat/internal/rentcat"
	"rentcat/internal/testutil"
)

// newTestDB creates an in-memory database with migrations applied.
func newTestDB(t *testing.T) (*SQLiteDatabase, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()

	db, err := NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db, clock
}

func TestSQLiteDatabase_Activity(t *testing.T) {
	db, clock := newTestDB(t)

	require.NoError(t, db.Record("category.upserted", map[string]any{"category": "ogrod"}))
	clock.Advance(time.Minute)
	require.NoError(t, db.Record("tools.toggled", map[string]any{"affected": 3, "enabled": false}))
	clock.Advance(time.Minute)
	require.NoError(t, db.Record("regeneration.completed", nil))

	events, err := db.ListActivity(0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "regeneration.completed", events[0].Event)
	assert.Equal(t, map[string]any{}, events[0].Details)
	assert.Equal(t, "tools.toggled", events[1].Event)
	assert.Equal(t, map[string]any{"affected": float64(3), "enabled": false}, events[1].Details)
	assert.True(t, events[2].CreatedAt.Equal(testutil.FixedClock().Now()))
	assert.Greater(t, events[0].ID, events[1].ID)

	limited, err := db.ListActivity(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "regeneration.completed", limited[0].Event)
}

func TestSQLiteDatabase_Activity_Empty(t *testing.T) {
	db, _ := newTestDB(t)
	events, err := db.ListActivity(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteDatabase_Runs(t *testing.T) {
	db, clock := newTestDB(t)
	start := clock.Now()

	failed := rentcat.RegenerationResult{
		RunID:      "run-1",
		Outcome:    rentcat.OutcomeFailed,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Error:      `stage "sitemap" exited with code 2`,
		Stages: []rentcat.StageResult{
			{Name: "render", Stdout: "rendered 12 pages\n", Duration: 1200 * time.Millisecond},
			{Name: "sitemap", ExitCode: 2, Stderr: "fatal\n", Duration: 300 * time.Millisecond},
		},
	}
	completed := rentcat.RegenerationResult{
		RunID:      "run-2",
		Outcome:    rentcat.OutcomeCompleted,
		Forced:     true,
		StartedAt:  start.Add(time.Minute),
		FinishedAt: start.Add(time.Minute + time.Second),
		Stages: []rentcat.StageResult{
			{Name: "render", Err: errors.New("context canceled"), ExitCode: -1},
		},
	}
	require.NoError(t, db.RecordRun(failed))
	require.NoError(t, db.RecordRun(completed))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID)
	assert.True(t, runs[0].Forced)
	require.Len(t, runs[0].Stages, 1)
	assert.EqualError(t, runs[0].Stages[0].Err, "context canceled")

	got := runs[1]
	assert.Equal(t, rentcat.OutcomeFailed, got.Outcome)
	assert.Equal(t, failed.Error, got.Error)
	assert.True(t, got.StartedAt.Equal(failed.StartedAt))
	assert.True(t, got.FinishedAt.Equal(failed.FinishedAt))
	require.Len(t, got.Stages, 2)
	assert.Equal(t, "render", got.Stages[0].Name)
	assert.Equal(t, "rendered 12 pages\n", got.Stages[0].Stdout)
	assert.Equal(t, 1200*time.Millisecond, got.Stages[0].Duration)
	assert.Equal(t, 2, got.Stages[1].ExitCode)
	assert.NoError(t, got.Stages[1].Err)

	limited, err := db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteDatabase_RecordRun_DuplicateIDRollsBack(t *testing.T) {
	db, clock := newTestDB(t)
	run := rentcat.RegenerationResult{
		RunID:      "run-1",
		Outcome:    rentcat.OutcomeCompleted,
		StartedAt:  clock.Now(),
		FinishedAt: clock.Now(),
		Stages:     []rentcat.StageResult{{Name: "render"}},
	}
	require.NoError(t, db.RecordRun(run))

	run.Stages = append(run.Stages, rentcat.StageResult{Name: "sitemap"})
	assert.Error(t, db.RecordRun(run))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Stages, 1)
}

func TestSQLiteDatabase_Close(t *testing.T) {
	db, err := NewSQLiteDatabase(":memory:", testutil.FixedClock())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.Error(t, db.Record("x", nil))
}
