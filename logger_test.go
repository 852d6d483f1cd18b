package ringlog

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"

	"github.com/ringlog/ringlog/internal/ring"
)

// fakeRing mirrors internal/worker's test double: it performs the actual
// write synchronously in PrepareWrite but only delivers the completion
// once ProcessCompletions runs, so tests exercise the same submit/reap
// shape a real io_uring ring would without needing one.
type fakeRing struct {
	mu          sync.Mutex
	operational atomic.Bool
	pendingRes  []fakeResult
	failSubmit  atomic.Bool
}

type fakeResult struct {
	cont *ring.Continuation
	n    int32
}

func newFakeRing() *fakeRing {
	r := &fakeRing{}
	r.operational.Store(true)

	return r
}

func (r *fakeRing) PrepareWrite(fd uintptr, data []byte, cont *ring.Continuation) bool {
	if !r.operational.Load() {
		return false
	}

	n, err := unix.Write(int(fd), data)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.pendingRes = append(r.pendingRes, fakeResult{cont: cont, n: -1})
	} else {
		r.pendingRes = append(r.pendingRes, fakeResult{cont: cont, n: int32(n)})
	}

	return true
}

func (r *fakeRing) Submit() bool {
	if r.failSubmit.Load() {
		r.operational.Store(false)

		return false
	}

	return true
}

func (r *fakeRing) ProcessCompletions() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.pendingRes)
	for _, res := range r.pendingRes {
		res.cont.Resume(res.n)
	}

	r.pendingRes = nil

	return n
}

func (r *fakeRing) WaitForCompletion(_ time.Duration) bool {
	time.Sleep(time.Microsecond)

	return true
}

func (r *fakeRing) IsOperational() bool { return r.operational.Load() }
func (r *fakeRing) MarkFailed()         { r.operational.Store(false) }
func (r *fakeRing) Close() error        { return nil }

var _ ring.Ring = (*fakeRing)(nil)

func newTestLogger(t *testing.T, fr *fakeRing, cfg Config) (*Logger, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	cfg.LogFileName = path

	merged, err := MergeConfig(cfg)
	require.NoError(t, err)

	logger, err := newWithRing(merged, fr, defaultErrorHandler)
	require.NoError(t, err)

	t.Cleanup(func() { _ = logger.Close() })

	return logger, path
}

func countLines(data []byte) int {
	n := 0

	for _, b := range data {
		if b == '\n' {
			n++
		}
	}

	return n
}

func TestLoggerWritesRecordsInOrder(t *testing.T) {
	fr := newFakeRing()
	logger, path := newTestLogger(t, fr, Config{BatchSize: 4, SequenceTagging: true})

	logger.Info("first")
	logger.Warn("second")
	logger.Error("third")

	logger.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[INFO]")
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "[WARN]")
	assert.Contains(t, lines[1], "second")
	assert.Contains(t, lines[2], "[ERROR]")
	assert.Contains(t, lines[2], "third")
}

func splitLines(data []byte) []string {
	var lines []string

	start := 0

	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}

	return lines
}

func TestLoggerFlushWaitsForAllOutstandingWrites(t *testing.T) {
	fr := newFakeRing()
	logger, path := newTestLogger(t, fr, Config{BatchSize: 8})

	for i := 0; i < 100; i++ {
		logger.Info("message %d", i)
	}

	logger.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, countLines(data))
}

func TestLoggerTwoProducersPreserveOwnOrder(t *testing.T) {
	fr := newFakeRing()
	logger, _ := newTestLogger(t, fr, Config{BatchSize: 8})

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		for i := 0; i < 50; i++ {
			logger.Info("producer-a %d", i)
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 50; i++ {
			logger.Info("producer-b %d", i)
		}
	}()

	wg.Wait()
	logger.Flush()

	stats := logger.Stats()
	assert.Equal(t, uint64(100), stats.Enqueued)
	assert.Equal(t, uint64(100), stats.Written)
}

// TestLoggerRingFailureDrainsAndReports implements spec.md section 8
// scenario 6: force submit to fail mid-run and verify the remaining queue
// is drained without processing, the drop count is reported, and Close
// never hangs. failSubmit is set before any record is pushed so the
// worker's very first Submit call inside its own goroutine is the one
// that fails — deterministic, unlike calling MarkFailed from the test
// goroutine, which would race the worker's already-running loop.
func TestLoggerRingFailureDrainsAndReports(t *testing.T) {
	fr := newFakeRing()
	fr.failSubmit.Store(true)

	var (
		mu       sync.Mutex
		reported []error
	)

	dir := t.TempDir()
	cfg := Config{
		LogFileName: filepath.Join(dir, "out.log"),
		BatchSize:   4,
		InternalErrorHandler: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	}

	merged, err := MergeConfig(cfg)
	require.NoError(t, err)

	logger, err := newWithRing(merged, fr, cfg.InternalErrorHandler)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		logger.Info("message %d", i)
	}

	require.Eventually(t, func() bool {
		return logger.queue.Len() == 0 && !fr.IsOperational()
	}, time.Second, time.Millisecond)

	done := make(chan struct{})

	go func() {
		require.NoError(t, logger.Close())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close hung after ring failure")
	}

	stats := logger.Stats()
	assert.Equal(t, uint64(10), stats.Dropped+stats.Written)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, reported)
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	fr := newFakeRing()
	logger, _ := newTestLogger(t, fr, Config{BatchSize: 4})

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestLoggerLogAfterCloseReportsShutdownError(t *testing.T) {
	fr := newFakeRing()

	var (
		mu       sync.Mutex
		reported []error
	)

	dir := t.TempDir()
	cfg := Config{
		LogFileName: filepath.Join(dir, "out.log"),
		BatchSize:   4,
		InternalErrorHandler: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	}

	merged, err := MergeConfig(cfg)
	require.NoError(t, err)

	logger, err := newWithRing(merged, fr, cfg.InternalErrorHandler)
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	logger.Info("after close")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	assert.ErrorIs(t, reported[0], ErrShutdown)
}
