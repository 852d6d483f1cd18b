// Package worker implements spec.md's C7 event loop: the single goroutine
// that drains the queue, drives the WritePreparer, schedules Continuations
// against the async I/O ring, batches submissions, reaps completions, and
// implements flush/shutdown. It is grounded on the per-iteration algorithm
// in spec.md section 4.7, restated without coroutines per section 9's
// design note (one pooled Continuation per outstanding submission,
// resumed from this goroutine).
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/ringlog/ringlog/internal/bufpool"
	"github.com/ringlog/ringlog/internal/constants"
	"github.com/ringlog/ringlog/internal/prepare"
	"github.com/ringlog/ringlog/internal/queue"
	"github.com/ringlog/ringlog/internal/ring"
	"github.com/ringlog/ringlog/internal/rotator"
)

// Config configures a Worker.
type Config struct {
	Queue               queue.Queue
	Pool                *bufpool.BufferPool
	Preparer            *prepare.Preparer
	Ring                ring.Ring
	Rotator             *rotator.Rotator
	BatchSize           int
	MaxLogsPerIteration int
	ErrorHandler        func(error)
}

// Worker is spec.md's C7, run on exactly one goroutine by the caller via
// Run.
type Worker struct {
	queue               queue.Queue
	pool                *bufpool.BufferPool
	preparer            *prepare.Preparer
	ring                ring.Ring
	rotator             *rotator.Rotator
	batchSize           int
	maxLogsPerIteration int
	errorHandler        func(error)

	mu            sync.Mutex
	flushCond     *sync.Cond
	continuations []*ring.Continuation
	outstanding   atomic.Int64

	processed   atomic.Uint64
	dropped     atomic.Uint64
	writeErrors atomic.Uint64

	stopRequested atomic.Bool
	done          chan struct{}
}

// Stats is a point-in-time snapshot of the worker's internal counters,
// used both by Logger.Stats and by the AsyncMetrics push path.
type Stats struct {
	Enqueued    uint64
	Processed   uint64
	Dropped     uint64
	WriteErrors uint64
}

// Stats reports the accumulated processed/dropped/write-error counts.
// Enqueued is always zero here: the worker only sees records after
// they've left the queue, so the caller (Logger) tracks Enqueued itself
// on the producer side.
func (w *Worker) Stats() Stats {
	return Stats{
		Processed:   w.processed.Load(),
		Dropped:     w.dropped.Load(),
		WriteErrors: w.writeErrors.Load(),
	}
}

// New constructs a Worker. Call Run to start draining; Run returns once
// RequestStop has been called and the queue and outstanding writes have
// both drained (or the ring goes non-operational).
func New(cfg Config) *Worker {
	w := &Worker{
		queue:               cfg.Queue,
		pool:                cfg.Pool,
		preparer:            cfg.Preparer,
		ring:                cfg.Ring,
		rotator:             cfg.Rotator,
		batchSize:           cfg.BatchSize,
		maxLogsPerIteration: cfg.MaxLogsPerIteration,
		errorHandler:        cfg.ErrorHandler,
		done:                make(chan struct{}),
	}
	w.flushCond = sync.NewCond(&w.mu)

	if w.batchSize < 1 {
		w.batchSize = 1
	}

	if w.maxLogsPerIteration < 1 {
		w.maxLogsPerIteration = w.batchSize
	}

	return w
}

// Run drives the event loop until shutdown. It must be called from
// exactly one goroutine; the caller typically does `go w.Run()`.
func (w *Worker) Run() {
	defer close(w.done)

	for {
		if !w.ring.IsOperational() {
			w.drainWithoutProcessing()

			return
		}

		w.runIteration()

		if w.shouldStop() {
			return
		}

		w.idleWait()
	}
}

func (w *Worker) runIteration() {
	pending := w.drainQueue()

	if ready := w.preparer.FlushStaged(); len(ready) > 0 {
		n, _ := w.scheduleReady(ready)
		pending += n
	}

	if pending > 0 {
		if !w.ring.Submit() {
			w.reportRingFailure()
		}
	}

	w.ring.ProcessCompletions()
	w.reapCompleted()
}

// drainQueue repeatedly try-pops the queue, formats each Record through
// the preparer, and schedules the resulting buffers, stopping after at
// most maxLogsPerIteration records so completion-reaping never starves
// (spec.md section 4.7 step 2).
func (w *Worker) drainQueue() int {
	pending := 0

	for i := 0; i < w.maxLogsPerIteration; i++ {
		r, ok := w.queue.TryPop()
		if !ok {
			break
		}

		ready := w.preparer.Prepare(r)

		n, submitNow := w.scheduleReady(ready)
		pending += n

		if !w.ring.IsOperational() {
			return pending
		}

		if submitNow || pending >= w.batchSize {
			if !w.ring.Submit() {
				w.reportRingFailure()

				return pending
			}

			pending = 0
		}
	}

	return pending
}

// scheduleReady asks the ring to prepare a write for each ready buffer,
// returning how many were actually scheduled and whether any of them
// asked for an immediate submit.
func (w *Worker) scheduleReady(ready []prepare.Ready) (scheduled int, submitNow bool) {
	for _, rd := range ready {
		if rd.ShouldSubmit {
			submitNow = true
		}

		if w.submitOne(rd.Buffer) {
			scheduled++
		} else {
			w.pool.Release(rd.Buffer)
		}
	}

	return scheduled, submitNow
}

// submitOne rotates the destination file if needed, then asks the ring to
// stage a write for buf. If the ring reports it is full (ordinary
// backpressure), it submits what's already staged and retries, per
// spec.md section 4.7 step 2.
func (w *Worker) submitOne(buf *bufpool.Buffer) bool {
	cont := ring.NewContinuation(buf)

	for {
		if w.rotator.ShouldRotate() {
			if err := w.rotator.Rotate(); err != nil {
				w.report(ewrap.Wrap(err, "worker: rotation failed"))
			}
		}

		fd := w.rotator.Fd()

		if w.ring.PrepareWrite(fd, buf.Bytes(), cont) {
			w.outstanding.Add(1)

			w.mu.Lock()
			w.continuations = append(w.continuations, cont)
			w.mu.Unlock()

			return true
		}

		if !w.ring.IsOperational() {
			return false
		}

		if !w.ring.Submit() {
			w.reportRingFailure()

			return false
		}
	}
}

// reapCompleted sweeps outstanding Continuations for ones the ring has
// resumed, per spec.md section 4.6: accounts successful writes toward
// rotation, reports transient failures, releases the buffer, and
// decrements the outstanding counter. It wakes Flush waiters once the
// outstanding count reaches zero.
func (w *Worker) reapCompleted() {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := w.continuations[:0]

	for _, cont := range w.continuations {
		if !cont.Done() {
			remaining = append(remaining, cont)

			continue
		}

		if cont.Result >= 0 {
			w.rotator.RecordWrite(int64(cont.Result))
			w.processed.Add(1)
		} else {
			w.writeErrors.Add(1)
			w.report(ewrap.New("worker: write completion reported a failure").
				WithMetadata("result", cont.Result))
		}

		w.pool.Release(cont.Buffer)
		w.outstanding.Add(-1)
	}

	w.continuations = remaining

	if w.outstanding.Load() == 0 {
		w.flushCond.Broadcast()
	}
}

// drainWithoutProcessing implements spec.md section 4.7 step 1 and
// section 7's fatal-ring-failure policy: once the ring is non-operational,
// every queued record is dropped (never partially processed) and the
// total drop count is reported exactly once.
func (w *Worker) drainWithoutProcessing() {
	dropped := 0

	for {
		if _, ok := w.queue.TryPop(); !ok {
			break
		}

		dropped++
	}

	w.mu.Lock()
	for _, cont := range w.continuations {
		w.pool.Release(cont.Buffer)
	}
	w.continuations = nil
	w.outstanding.Store(0)
	w.flushCond.Broadcast()
	w.mu.Unlock()

	if dropped > 0 {
		w.dropped.Add(uint64(dropped))
		w.report(ewrap.New("worker: ring non-operational, queued records dropped").
			WithMetadata("dropped", dropped))
	}
}

func (w *Worker) reportRingFailure() {
	w.ring.MarkFailed()
	w.report(ring.ErrRingNonOperational)
}

func (w *Worker) report(err error) {
	if w.errorHandler != nil && err != nil {
		w.errorHandler(err)
	}
}

// shouldStop implements spec.md section 4.7's termination predicate: the
// loop keeps running unless stop has been requested AND the queue is
// empty AND there are no outstanding writes.
func (w *Worker) shouldStop() bool {
	return w.stopRequested.Load() && w.queue.Len() == 0 && w.outstanding.Load() == 0
}

// idleWait implements spec.md section 4.7 step 7's cooperative wait.
func (w *Worker) idleWait() {
	empty := w.queue.Len() == 0
	hasOutstanding := w.outstanding.Load() > 0

	switch {
	case empty && hasOutstanding:
		w.ring.WaitForCompletion(constants.DefaultCompletionWait)
	case empty && !hasOutstanding:
		time.Sleep(constants.DefaultIdleSleep)
	}
}

// RequestStop signals the worker to exit once the queue and outstanding
// writes drain. Idempotent.
func (w *Worker) RequestStop() {
	w.stopRequested.Store(true)
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Flush blocks until every Record enqueued before the call is durably on
// disk: the queue is empty and there are no outstanding writes. It is safe
// to call concurrently with producers still logging.
func (w *Worker) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.queue.Len() != 0 || w.outstanding.Load() != 0 {
		w.flushCond.Wait()
	}
}

// OutstandingCount reports the number of writes currently in flight, for
// diagnostics and tests.
func (w *Worker) OutstandingCount() int64 {
	return w.outstanding.Load()
}
