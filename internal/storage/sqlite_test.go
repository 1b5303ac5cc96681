package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reptlab/internal/rept"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	store := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun() Run {
	return Run{
		Config: rept.SimulationConfig{
			LatticeSize:           50,
			NumChains:             15,
			ChainLength:           20,
			ObstacleConcentration: 0.12,
			Seed:                  42,
		},
		Stats: rept.Stats{
			Steps:           50000,
			AttemptedMoves:  750000,
			SuccessfulMoves: 300000,
			RMSEndToEnd:     5.123,
			Autocorrelation: 0.31,
			AcceptanceRatio: 0.4,
			PopulationSize:  15,
			IsFinished:      true,
		},
	}
}

func TestRunStore_InitRequiresPath(t *testing.T) {
	store := NewRunStore("")
	assert.Error(t, store.Init(context.Background()))
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	samples := []rept.Sample{
		{Step: 100, RMSEndToEnd: 4.9, Autocorrelation: 0.95, AcceptanceRatio: 0.5},
		{Step: 200, RMSEndToEnd: 5.0, Autocorrelation: 0.88, AcceptanceRatio: 0.48},
	}
	id, err := store.SaveRun(ctx, testRun(), samples)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "an empty run ID must be assigned a UUID")

	got, found, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testRun().Config, got.Config)
	assert.Equal(t, testRun().Stats, got.Stats)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	gotSamples, err := store.Samples(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, samples, gotSamples)
}

func TestRunStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRunStore_SaveIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := testRun()
	run.ID = "fixed-id"
	_, err := store.SaveRun(ctx, run, []rept.Sample{{Step: 100, RMSEndToEnd: 1}})
	require.NoError(t, err)

	run.Stats.Steps = 99999
	id, err := store.SaveRun(ctx, run, []rept.Sample{{Step: 100, RMSEndToEnd: 2}})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	got, found, err := store.GetRun(ctx, "fixed-id")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(99999), got.Stats.Steps)

	samples, err := store.Samples(ctx, "fixed-id")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].RMSEndToEnd)
}

func TestRunStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testRun()
	older.ID = "older"
	older.CreatedAt = time.Now().Add(-time.Hour)
	_, err := store.SaveRun(ctx, older, nil)
	require.NoError(t, err)

	newer := testRun()
	newer.ID = "newer"
	newer.CreatedAt = time.Now()
	_, err = store.SaveRun(ctx, newer, nil)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID, "runs must be listed newest first")
	assert.Equal(t, "older", runs[1].ID)
}

func TestRunStore_DeleteRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SaveRun(ctx, testRun(), []rept.Sample{{Step: 100}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRun(ctx, id))

	_, found, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	samples, err := store.Samples(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestRunStore_UseBeforeInit(t *testing.T) {
	store := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	_, err := store.SaveRun(context.Background(), testRun(), nil)
	assert.Error(t, err)
}
