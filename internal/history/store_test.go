// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdconvert/pkg/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSummary() types.BatchSummary {
	return types.BatchSummary{
		Successful: 1,
		Failed:     1,
		Total:      2,
		Results: []types.ConversionResult{
			{Input: "/in/a.pdf", Output: "/out/a.md", Success: true},
			{Input: "/in/b.docx", Success: false, Err: "conversion produced empty output"},
		},
	}
}

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRecordAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := s.Record(ctx, Batch{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		OutputDir:  "/out",
		Backend:    "docling",
	}, sampleSummary())
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 3*time.Second, got.FinishedAt.Sub(got.StartedAt))
	assert.Equal(t, "/out", got.OutputDir)
	assert.Equal(t, "docling", got.Backend)
	assert.Equal(t, 1, got.Successful)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 2, got.Total)

	require.Len(t, got.Results, 2)
	assert.Equal(t, Result{Seq: 1, Input: "/in/a.pdf", Output: "/out/a.md", Success: true}, got.Results[0])
	assert.Equal(t, Result{Seq: 2, Input: "/in/b.docx", Success: false, Error: "conversion produced empty output"}, got.Results[1])
}

func TestGet_NotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.Record(ctx, Batch{StartedAt: now, FinishedAt: now, OutputDir: "/out"}, types.BatchSummary{Total: i})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)
	assert.Empty(t, all[0].Results, "list omits per-file results")

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestList_Empty(t *testing.T) {
	s := setupStore(t)
	got, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecorder_RecordsOnComplete(t *testing.T) {
	s := setupStore(t)
	rec := NewRecorder(s, "/out", types.BackendMarkitdown, nil)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(time.Minute)}
	rec.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	rec.Emit(types.ProgressEvent{Status: types.StatusStarting, Message: "Collecting files..."})
	rec.Emit(types.ProgressEvent{Status: types.StatusConverting, Progress: 1, Total: 2})
	rec.Complete(sampleSummary())

	require.NotZero(t, rec.BatchID())
	got, err := s.Get(context.Background(), rec.BatchID())
	require.NoError(t, err)
	assert.True(t, start.Equal(got.StartedAt))
	assert.Equal(t, time.Minute, got.FinishedAt.Sub(got.StartedAt))
	assert.Equal(t, "markitdown", got.Backend)
	assert.Len(t, got.Results, 2)
}

func TestRecorder_NothingWithoutComplete(t *testing.T) {
	s := setupStore(t)
	rec := NewRecorder(s, "/out", types.BackendDocling, nil)
	rec.Emit(types.ProgressEvent{Status: types.StatusStarting})
	rec.Emit(types.ProgressEvent{Status: types.StatusError, Message: "No supported files found"})

	got, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, rec.BatchID())
}

func TestRecorder_FailureIsLogged(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Close())

	var logs bytes.Buffer
	rec := NewRecorder(s, "/out", types.BackendDocling, slog.New(slog.NewTextHandler(&logs, nil)))
	rec.Complete(sampleSummary())

	assert.Zero(t, rec.BatchID())
	assert.Contains(t, logs.String(), "recording batch history")
}
