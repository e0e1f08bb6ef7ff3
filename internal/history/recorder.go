// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Recorder is a progress.Reporter that writes each completed batch to a
// Store. Batches that never complete (no supported files) are not recorded.
// Recording failures are logged and never affect the batch.
type Recorder struct {
	store     *Store
	outputDir string
	backend   types.ConversionBackend
	log       *slog.Logger
	now       func() time.Time

	started time.Time
	lastID  int64
}

// NewRecorder returns a Recorder for one batch writing to outputDir.
func NewRecorder(store *Store, outputDir string, backend types.ConversionBackend, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, outputDir: outputDir, backend: backend, log: log, now: time.Now}
}

// Emit notes the batch start time.
func (r *Recorder) Emit(ev types.ProgressEvent) {
	if ev.Status == types.StatusStarting && r.started.IsZero() {
		r.started = r.now()
	}
}

// Complete records the batch.
func (r *Recorder) Complete(summary types.BatchSummary) {
	finished := r.now()
	started := r.started
	if started.IsZero() {
		started = finished
	}
	id, err := r.store.Record(context.Background(), Batch{
		StartedAt:  started,
		FinishedAt: finished,
		OutputDir:  r.outputDir,
		Backend:    string(r.backend),
	}, summary)
	if err != nil {
		r.log.Warn("recording batch history", "error", err)
		return
	}
	r.lastID = id
	r.log.Debug("batch recorded", "id", id)
}

// BatchID returns the ID of the recorded batch, or zero if none was recorded.
func (r *Recorder) BatchID() int64 {
	return r.lastID
}
