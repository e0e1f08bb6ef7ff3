// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress implements the line-oriented progress protocol: one JSON
// object per line, flushed as soon as it is written, so a supervising process
// can parse events in real time.
//
//	docs/ARCHITECTURE § Progress Protocol.
package progress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Reporter receives the progress records of a batch. Emit is called for
// every per-file or lifecycle event; Complete is called exactly once, after
// the last file, for batches that discovered at least one file.
type Reporter interface {
	Emit(ev types.ProgressEvent)
	Complete(summary types.BatchSummary)
}

// Writer is a Reporter that serializes records as newline-delimited JSON.
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder

	// err is the first write error; later records are dropped.
	err error
}

// NewWriter returns a Writer that writes records to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{buf: buf, enc: json.NewEncoder(buf)}
}

// Emit writes ev as one line and flushes it.
func (w *Writer) Emit(ev types.ProgressEvent) {
	w.write(ev)
}

// Complete writes the terminal summary record.
func (w *Writer) Complete(summary types.BatchSummary) {
	w.write(SummaryRecord(summary))
}

// Err returns the first error encountered while writing, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) write(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	// Encode appends the newline.
	if err := w.enc.Encode(v); err != nil {
		w.err = fmt.Errorf("encoding progress record: %w", err)
		return
	}
	if err := w.buf.Flush(); err != nil {
		w.err = fmt.Errorf("flushing progress record: %w", err)
	}
}

// SummaryRecord builds the terminal protocol record for summary.
func SummaryRecord(summary types.BatchSummary) types.SummaryRecord {
	if summary.Results == nil {
		summary.Results = []types.ConversionResult{}
	}
	return types.SummaryRecord{
		Status: types.StatusComplete,
		Message: fmt.Sprintf("Conversion complete: %d succeeded, %d failed",
			summary.Successful, summary.Failed),
		BatchSummary: summary,
	}
}

// Tee fans every record out to each of rs in order. Nil reporters are ignored.
func Tee(rs ...Reporter) Reporter {
	var out tee
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tee []Reporter

func (t tee) Emit(ev types.ProgressEvent) {
	for _, r := range t {
		r.Emit(ev)
	}
}

func (t tee) Complete(summary types.BatchSummary) {
	for _, r := range t {
		r.Complete(summary)
	}
}

// Discard is a Reporter that drops everything.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Emit(types.ProgressEvent)    {}
func (discard) Complete(types.BatchSummary) {}

// Recorder is a Reporter that keeps every record in memory, for assertions
// on the records a batch produced.
type Recorder struct {
	mu      sync.Mutex
	events  []types.ProgressEvent
	summary *types.BatchSummary
}

// Emit appends ev to the recorded events.
func (r *Recorder) Emit(ev types.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Complete stores the batch summary.
func (r *Recorder) Complete(summary types.BatchSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &summary
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressEvent(nil), r.events...)
}

// Summary returns the recorded summary and whether Complete was called.
func (r *Recorder) Summary() (types.BatchSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return types.BatchSummary{}, false
	}
	return *r.summary, true
}

// Count returns how many recorded events have the given status.
func (r *Recorder) Count(status types.Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Status == status {
			n++
		}
	}
	return n
}
