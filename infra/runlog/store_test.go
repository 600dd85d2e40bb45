package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/core/factory"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/runlog"
)

var t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func sampleRecords() []runlog.Record {
	return []runlog.Record{
		{RunID: "a", Timestamp: t0, Strategy: "production_saving", Summary: model.Summary{PeakAfterKW: 4}},
		{RunID: "b", Timestamp: t0.Add(time.Hour), Strategy: "block_power", Limits: []float64{3.1, 4.1, 0, 0, 0}},
		{RunID: "c", Timestamp: t0.Add(2 * time.Hour), Strategy: "block_power", Error: "block 2: infeasible power limit"},
	}
}

func stores(t *testing.T) map[string]runlog.Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "plain", "runs.jsonl"))
	require.NoError(t, err)
	rot, err := NewRotatingJSONLStore(filepath.Join(dir, "rotating", "runs.jsonl"), 1, 3, 7)
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	return map[string]runlog.Store{"jsonl": jsonl, "rotating": rot, "sqlite": sq}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = s.Close() }()
			for _, rec := range sampleRecords() {
				require.NoError(t, s.Append(ctx, rec))
			}

			all, err := s.Query(ctx, runlog.Query{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "a", all[0].RunID)
			assert.Equal(t, 4.0, all[0].Summary.PeakAfterKW)
			assert.Equal(t, []float64{3.1, 4.1, 0, 0, 0}, all[1].Limits)

			blocks, err := s.Query(ctx, runlog.Query{Strategy: "block_power"})
			require.NoError(t, err)
			assert.Len(t, blocks, 2)

			failed, err := s.Query(ctx, runlog.Query{FailedOnly: true})
			require.NoError(t, err)
			require.Len(t, failed, 1)
			assert.Equal(t, "c", failed[0].RunID)

			window, err := s.Query(ctx, runlog.Query{Start: t0.Add(30 * time.Minute), End: t0.Add(90 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, window, 1)
			assert.Equal(t, "b", window[0].RunID)

			latest, err := s.Query(ctx, runlog.Query{Limit: 2})
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, "b", latest[0].RunID)
			assert.Equal(t, "c", latest[1].RunID)
		})
	}
}

func TestRotatingStoreReadsBackups(t *testing.T) {
	ctx := context.Background()
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 3, 7)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	recs := sampleRecords()
	require.NoError(t, s.Append(ctx, recs[0]))
	require.NoError(t, s.logger.Rotate())
	require.NoError(t, s.Append(ctx, recs[1]))

	files, err := filepath.Glob(globPattern(s.path))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	out, err := s.Query(ctx, runlog.Query{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].RunID)
	assert.Equal(t, "b", out[1].RunID)
}

func TestRegisteredStores(t *testing.T) {
	dir := t.TempDir()
	assert.Subset(t, runlog.StoreTypes(), []string{"jsonl", "sqlite"})

	s, err := runlog.NewStore(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "a.jsonl")}})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = runlog.NewStore(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{
		"path":        filepath.Join(dir, "b.jsonl"),
		"max_size_mb": 5,
	}})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	require.NoError(t, s.Close())

	s, err = runlog.NewStore(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(dir, "c.db")}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
}
