// Package ringlog is an asynchronous, single-file structured log sink
// optimized for high ingestion throughput on Linux. Producers call
// Info/Warn/Error, which enqueue a Record and return without waiting for
// I/O; a single background worker goroutine drains the queue, formats and
// coalesces records into pooled buffers, submits writes through a
// Linux io_uring ring, reaps completions, and rotates the destination
// file at a size threshold.
//
// Basic usage:
//
//	err := ringlog.Init(ringlog.DefaultConfig())
//	if err != nil {
//		panic(err)
//	}
//	defer ringlog.Shutdown()
//
//	ringlog.Info("server listening on %s", addr)
//	ringlog.Error("request failed: %v", err)
//
// A caller that needs more than one sink, or wants to avoid the global
// singleton, can call New directly and hold on to the returned *Logger.
package ringlog

import (
	"context"
	"fmt"
	"os"
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
	"github.com/ringlog/ringlog/internal/threadid"
	"github.com/ringlog/ringlog/internal/worker"
)

// Level is one of the three severities spec.md's data model allows.
type Level uint8

// The only three levels the Record data model names (spec.md section 3).
const (
	InfoLevel Level = iota
	WarnLevel
	ErrorLevel
)

// String returns the level's on-disk spelling: "INFO", "WARN" or "ERROR".
func (l Level) String() string {
	switch l {
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is one instance of the ingestion pipeline spec.md describes:
// one queue, one buffer pool, one preparer, one ring, one rotator, and
// the single worker goroutine that drives them. Producers may call its
// logging methods concurrently from any number of goroutines.
type Logger struct {
	cfg      mergedConfig
	queue    queue.Queue
	pool     *bufpool.BufferPool
	preparer *prepare.Preparer
	ring     ring.Ring
	rotator  *rotator.Rotator
	worker   *worker.Worker

	errorHandler func(error)

	wg         sync.WaitGroup
	closeMutex sync.Mutex
	closed     bool

	enqueued    atomic.Uint64
	metricsStop chan struct{}
}

// New constructs a Logger from cfg, running MergeConfig's defaulting,
// derivation and validation first. A non-nil error is always a hard
// configuration error (spec.md section 7, error kind 1); warnings are
// routed through cfg.InternalErrorHandler (or the default handler) before
// New returns.
func New(cfg Config) (*Logger, error) {
	merged, err := MergeConfig(cfg)
	if err != nil {
		return nil, ewrap.Wrap(ErrInvalidConfig, err.Error())
	}

	errorHandler := merged.InternalErrorHandler
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	for _, w := range merged.warnings {
		errorHandler(ewrap.New(w))
	}

	r, err := ring.New(uint32(merged.QueueDepth))
	if err != nil {
		return nil, ewrap.Wrap(err, "ringlog: constructing async I/O ring")
	}

	return newWithRing(merged, r, errorHandler)
}

// newWithRing builds a Logger against an already-merged configuration and
// a caller-supplied Ring, the seam tests use to substitute a fake ring for
// the real io_uring-backed one (grounded on internal/worker's test suite's
// fakeRing, which does the same thing one layer down).
func newWithRing(merged mergedConfig, r ring.Ring, errorHandler func(error)) (*Logger, error) {
	rot, err := rotator.New(rotator.Config{
		Path:     merged.LogFileName,
		MaxSize:  merged.MaxLogSizeBytes,
		FileMode: os.FileMode(toFileMode(merged.FileMode)),
	})
	if err != nil {
		_ = r.Close()

		return nil, ewrap.Wrap(err, "ringlog: opening log file")
	}

	pool := bufpool.New(bufpool.Config{
		SmallPoolSize:  merged.SmallBufferPoolSize,
		MediumPoolSize: merged.MediumBufferPoolSize,
		LargePoolSize:  merged.LargeBufferPoolSize,
		SmallBufSize:   merged.SmallBufferSize,
		MediumBufSize:  merged.MediumBufferSize,
		LargeBufSize:   merged.LargeBufferSize,
	})

	preparer := prepare.New(pool, prepare.Config{
		CoalesceSize:    merged.CoalesceSize,
		SequenceTagging: merged.SequenceTagging,
	})

	q := merged.Queue
	if q == nil {
		q = queue.NewUnbounded(merged.SequenceTagging)
	}

	w := worker.New(worker.Config{
		Queue:               q,
		Pool:                pool,
		Preparer:            preparer,
		Ring:                r,
		Rotator:             rot,
		BatchSize:           merged.BatchSize,
		MaxLogsPerIteration: merged.maxLogsPerIteration,
		ErrorHandler:        errorHandler,
	})

	l := &Logger{
		cfg:          merged,
		queue:        q,
		pool:         pool,
		preparer:     preparer,
		ring:         r,
		rotator:      rot,
		worker:       w,
		errorHandler: errorHandler,
		metricsStop:  make(chan struct{}),
	}

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		w.Run()
	}()

	go l.emitMetricsPeriodically()

	return l, nil
}

func toFileMode(mode uint32) uint32 {
	if mode == 0 {
		return DefaultFileMode
	}

	return mode
}

// log enqueues one formatted Record. It never blocks except on a full
// bounded queue (spec.md section 5), and it never returns an error to the
// caller: queue failures are internal diagnostics, routed through the
// configured error handler per spec.md section 7, error kind 7.
func (l *Logger) log(level Level, format string, args ...any) {
	l.closeMutex.Lock()
	closed := l.closed
	l.closeMutex.Unlock()

	if closed {
		l.errorHandler(ErrShutdown)

		return
	}

	payload := format
	if len(args) > 0 {
		payload = fmt.Sprintf(format, args...)
	}

	l.queue.Push(queue.Record{
		Level:     uint8(level),
		Payload:   []byte(payload),
		ThreadID:  threadid.Current(),
		Timestamp: time.Now().UnixNano(),
	})

	l.enqueued.Add(1)
}

// Info enqueues an INFO record, merging format and args with fmt.Sprintf
// per SPEC_FULL.md section 2.5.
func (l *Logger) Info(format string, args ...any) { l.log(InfoLevel, format, args...) }

// Warn enqueues a WARN record.
func (l *Logger) Warn(format string, args ...any) { l.log(WarnLevel, format, args...) }

// Error enqueues an ERROR record.
func (l *Logger) Error(format string, args ...any) { l.log(ErrorLevel, format, args...) }

// Flush blocks until every Record enqueued before this call is durably on
// disk: the queue is empty and there are no outstanding ring submissions.
// Safe to call concurrently with producers still logging.
func (l *Logger) Flush() {
	l.worker.Flush()
}

// FlushTimeout is Flush bounded by a deadline; it returns ErrFlushTimeout
// if the worker has not drained within d.
func (l *Logger) FlushTimeout(d time.Duration) error {
	done := make(chan struct{})

	go func() {
		l.worker.Flush()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(d):
		return ErrFlushTimeout
	}
}

// Close implements spec.md section 4.7's shutdown protocol: it shuts the
// queue down, signals the worker to stop once drained, joins it with a
// bounded wait, and releases the ring and file. Idempotent; safe to call
// more than once.
func (l *Logger) Close() error {
	l.closeMutex.Lock()

	if l.closed {
		l.closeMutex.Unlock()

		return nil
	}

	l.closed = true
	l.closeMutex.Unlock()

	close(l.metricsStop)

	l.queue.Shutdown()
	l.worker.RequestStop()

	timeout := time.Duration(l.cfg.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultShutdownTimeout
	}

	done := make(chan struct{})

	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		l.errorHandler(ewrap.New("ringlog: shutdown timed out waiting for worker to drain").
			WithMetadata("timeout", timeout.String()))
	}

	if err := l.ring.Close(); err != nil {
		l.errorHandler(ewrap.Wrap(err, "ringlog: closing ring"))
	}

	if err := l.rotator.Close(); err != nil {
		l.errorHandler(ewrap.Wrap(err, "ringlog: closing log file"))

		return err
	}

	return nil
}

// Stats reports a point-in-time snapshot of the pipeline's internal
// counters, the pull-based counterpart to the push-based AsyncMetrics
// handlers registered via RegisterAsyncMetricsHandler.
func (l *Logger) Stats() AsyncMetrics {
	stats := l.worker.Stats()

	return AsyncMetrics{
		Enqueued:    l.enqueued.Load(),
		Written:     stats.Processed,
		Dropped:     stats.Dropped,
		WriteErrors: stats.WriteErrors,
		QueueDepth:  uint64(l.queue.Len()),
		Outstanding: uint64(l.worker.OutstandingCount()),
	}
}

func (l *Logger) emitMetricsPeriodically() {
	ticker := time.NewTicker(constants.DefaultMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.metricsStop:
			return
		case <-ticker.C:
			EmitAsyncMetrics(context.Background(), l.Stats())
		}
	}
}
