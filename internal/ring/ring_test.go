package ring_test

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlog/ringlog/internal/bufpool"
	"github.com/ringlog/ringlog/internal/ring"
)

func TestNewReportsOperationalOnlyOnLinux(t *testing.T) {
	r, err := ring.New(8)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	if runtime.GOOS != "linux" {
		assert.False(t, r.IsOperational())
		assert.False(t, r.PrepareWrite(0, []byte("x"), ring.NewContinuation(nil)))
		assert.False(t, r.Submit())
		assert.Equal(t, 0, r.ProcessCompletions())

		return
	}

	assert.True(t, r.IsOperational())
}

func TestPrepareWriteSubmitAndCompleteOnLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("io_uring is Linux-only, per spec.md section 1's non-goal on cross-platform I/O")
	}

	f, err := os.CreateTemp(t.TempDir(), "ring-*.log")
	require.NoError(t, err)

	defer f.Close()

	r, err := ring.New(8)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	pool := bufpool.New(bufpool.DefaultConfig())
	buf := pool.Acquire(32)
	buf.SetSize(copy(buf.Raw(), []byte("hello io_uring\n")))

	cont := ring.NewContinuation(buf)
	require.True(t, r.PrepareWrite(f.Fd(), buf.Bytes(), cont))
	require.True(t, r.Submit())

	deadline := time.Now().Add(2 * time.Second)
	for !cont.Done() && time.Now().Before(deadline) {
		r.WaitForCompletion(50 * time.Millisecond)
		r.ProcessCompletions()
	}

	require.True(t, cont.Done())
	assert.EqualValues(t, buf.Size(), cont.Result)
}

func TestMarkFailedMakesRingNonOperational(t *testing.T) {
	r, err := ring.New(4)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	r.MarkFailed()
	assert.False(t, r.IsOperational())
	assert.False(t, r.PrepareWrite(0, []byte("x"), ring.NewContinuation(nil)))
}
