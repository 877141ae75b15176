// Package editor implements the interactive editing session for a
// conversation-flow graph: the optimistic in-memory graph store, the undo
// stack for destructive operations, and the canvas interaction state machine.
//
// This file implements the outbound write queue. Local mutations are the
// source of truth for the UI; the matching repository writes are dispatched
// fire-and-forget by a background goroutine, and failures are reported
// through a callback without rolling local state back.
package editor

import (
	"log/slog"
	"sync/atomic"

	"github.com/BTreeMap/FlowCanvas/internal/store"
)

// writeQueueSize bounds how many repository writes may be outstanding before
// enqueueing blocks. Graphs are tens of nodes; this is generous.
const writeQueueSize = 256

// WriteErrorHandler receives repository failures detected after the local
// mutation already committed.
type WriteErrorHandler func(op string, err error)

// queuedWrite is one pending repository call.
type queuedWrite struct {
	op   string
	call func(store.Repository) error
}

// writeQueue drains queued repository writes on a single goroutine,
// preserving the order mutations were issued locally. Durable completion
// order across rapid edits is still not guaranteed by the repository itself.
type writeQueue struct {
	repo    store.Repository
	ops     chan queuedWrite
	done    chan struct{}
	onError WriteErrorHandler
	pending atomic.Int64
}

func newWriteQueue(repo store.Repository, onError WriteErrorHandler) *writeQueue {
	q := &writeQueue{
		repo:    repo,
		ops:     make(chan queuedWrite, writeQueueSize),
		done:    make(chan struct{}),
		onError: onError,
	}
	go q.run()
	return q
}

func (q *writeQueue) run() {
	defer close(q.done)
	for w := range q.ops {
		if w.call == nil {
			q.pending.Add(-1)
			continue
		}
		if err := w.call(q.repo); err != nil {
			slog.Error("writeQueue.run: repository write failed", "op", w.op, "error", err)
			if q.onError != nil {
				q.onError(w.op, err)
			}
		} else {
			slog.Debug("writeQueue.run: repository write landed", "op", w.op)
		}
		q.pending.Add(-1)
	}
}

// enqueue queues one repository call. Never blocks local editing unless the
// queue is saturated.
func (q *writeQueue) enqueue(op string, call func(store.Repository) error) {
	q.pending.Add(1)
	q.ops <- queuedWrite{op: op, call: call}
}

// flush blocks until every write queued before the call has been attempted.
func (q *writeQueue) flush() {
	marker := make(chan struct{})
	q.pending.Add(1)
	q.ops <- queuedWrite{op: "flush", call: func(store.Repository) error {
		close(marker)
		return nil
	}}
	<-marker
}

// close stops the worker after draining already-queued writes.
func (q *writeQueue) close() {
	close(q.ops)
	<-q.done
}

// pendingWrites reports how many writes are queued or in flight.
func (q *writeQueue) pendingWrites() int {
	return int(q.pending.Load())
}
