// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"sync"
	"time"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// Batch states reported by GET /api/batches/{id}.
const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// subscriberBuffer bounds how far a websocket client may fall behind before
// it is disconnected.
const subscriberBuffer = 256

// batch is one server-side conversion run. It is a progress.Reporter that
// keeps every record for replay and fans records out to live subscribers.
type batch struct {
	id        string
	inputs    []string
	output    string
	createdAt time.Time

	mu      sync.Mutex
	records []any
	state   string
	summary *types.BatchSummary
	err     string
	subs    map[chan any]struct{}
}

var _ progress.Reporter = (*batch)(nil)

func newBatch(id string, inputs []string, output string) *batch {
	return &batch{
		id:        id,
		inputs:    inputs,
		output:    output,
		createdAt: time.Now(),
		state:     StateRunning,
		subs:      make(map[chan any]struct{}),
	}
}

func (b *batch) Emit(ev types.ProgressEvent) {
	b.publish(ev)
}

func (b *batch) Complete(summary types.BatchSummary) {
	b.mu.Lock()
	b.summary = &summary
	b.mu.Unlock()
	b.publish(progress.SummaryRecord(summary))
}

func (b *batch) publish(rec any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	for ch := range b.subs {
		select {
		case ch <- rec:
		default:
			// Slow subscriber; drop it rather than block the batch.
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// finish marks the batch done and closes every live subscription.
func (b *batch) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = StateFailed
		b.err = err.Error()
	} else {
		b.state = StateComplete
	}
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// subscribe returns the records published so far and a channel carrying
// every later record. The channel is closed when the batch finishes; for a
// finished batch it is returned already closed.
func (b *batch) subscribe() ([]any, chan any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	replay := append([]any(nil), b.records...)
	ch := make(chan any, subscriberBuffer)
	if b.state != StateRunning {
		close(ch)
		return replay, ch
	}
	b.subs[ch] = struct{}{}
	return replay, ch
}

func (b *batch) unsubscribe(ch chan any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// BatchStatus is the JSON body of GET /api/batches/{id}.
type BatchStatus struct {
	ID        string              `json:"id"`
	State     string              `json:"state"`
	Inputs    []string            `json:"inputs"`
	Output    string              `json:"output"`
	CreatedAt time.Time           `json:"created_at"`
	Summary   *types.BatchSummary `json:"summary,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func (b *batch) status() BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatchStatus{
		ID:        b.id,
		State:     b.state,
		Inputs:    b.inputs,
		Output:    b.output,
		CreatedAt: b.createdAt,
		Summary:   b.summary,
		Error:     b.err,
	}
}
