package prepare_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlog/ringlog/internal/bufpool"
	"github.com/ringlog/ringlog/internal/prepare"
	"github.com/ringlog/ringlog/internal/queue"
)

func newPool() *bufpool.BufferPool {
	return bufpool.New(bufpool.Config{
		SmallPoolSize: 8, MediumPoolSize: 4, LargePoolSize: 2,
		SmallBufSize: 512, MediumBufSize: 4096, LargeBufSize: 16384,
	})
}

func record(payload, thread string) queue.Record {
	return queue.Record{
		Level:     0,
		Payload:   []byte(payload),
		ThreadID:  thread,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano(),
	}
}

func TestFormatShapeWithoutCoalescing(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{})

	ready := p.Prepare(record("hello", "t1"))
	require.Len(t, ready, 1)

	line := string(ready[0].Buffer.Bytes())
	assert.True(t, strings.HasPrefix(line, "[2026-01-02T03:04:05Z] [INFO] [Thread: t1]: hello"))
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestSequenceTaggingInsertsSeqBracket(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{SequenceTagging: true})

	r := record("hi", "t1")
	r.Sequence = 42

	ready := p.Prepare(r)
	require.Len(t, ready, 1)

	line := string(ready[0].Buffer.Bytes())
	assert.Contains(t, line, "[Thread: t1] [Seq: 42]: hi")
}

// TestFormatIndividualTruncatesInsteadOfReallocating guards the
// non-coalescing path against a prefix that outgrows the fixed 256-byte
// headroom: the pooled buffer must come back truncated to its own
// capacity rather than backed by a reallocated slice, mirroring the
// original's fmt::format_to_n(buffer, capacity-1, ...) bound.
func TestFormatIndividualTruncatesInsteadOfReallocating(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{})

	hugeThread := strings.Repeat("t", 1024)
	ready := p.Prepare(record("hello", hugeThread))
	require.Len(t, ready, 1)

	buf := ready[0].Buffer
	assert.LessOrEqual(t, buf.Size(), buf.Cap())
	assert.NotPanics(t, func() { buf.Bytes() })
}

func TestCoalescingFlushesAtK(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{CoalesceSize: 3})

	var got []prepare.Ready
	got = append(got, p.Prepare(record("a", "t1"))...)
	assert.Empty(t, got)
	got = append(got, p.Prepare(record("b", "t1"))...)
	assert.Empty(t, got)
	got = append(got, p.Prepare(record("c", "t1"))...)

	require.Len(t, got, 1)
	assert.True(t, got[0].ShouldSubmit)

	line := string(got[0].Buffer.Bytes())
	assert.Contains(t, line, ": a\n")
	assert.Contains(t, line, ": b\n")
	assert.Contains(t, line, ": c\n")
}

func TestFlushStagedForcesPartialBatch(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{CoalesceSize: 10})

	out := p.Prepare(record("only-one", "t1"))
	assert.Empty(t, out)

	flushed := p.FlushStaged()
	require.Len(t, flushed, 1)
	assert.Contains(t, string(flushed[0].Buffer.Bytes()), "only-one")

	// Flushing again with nothing staged is a no-op.
	assert.Empty(t, p.FlushStaged())
}

func TestStagingOverflowFlushesThenFormatsNewRecordIndividually(t *testing.T) {
	p := prepare.New(bufpool.New(bufpool.Config{
		SmallPoolSize: 4, MediumPoolSize: 4, LargePoolSize: 4,
		SmallBufSize: 256, MediumBufSize: 4096, LargeBufSize: 16384,
	}), prepare.Config{CoalesceSize: 1000, StagingCapacity: 64})

	// Stage one small record, well under the 64-byte cap.
	out := p.Prepare(record("x", "t1"))
	assert.Empty(t, out)

	// A record whose formatted line overflows the remaining staging
	// capacity must flush what was staged AND still carry its own
	// bytes through, not drop them.
	big := strings.Repeat("y", 200)
	out = p.Prepare(record(big, "t1"))
	require.Len(t, out, 2)

	assert.Contains(t, string(out[0].Buffer.Bytes()), ": x\n")
	assert.Contains(t, string(out[1].Buffer.Bytes()), big)
}

func TestNoBytesLostAcrossManyRecords(t *testing.T) {
	p := prepare.New(newPool(), prepare.Config{CoalesceSize: 4, StagingCapacity: 512})

	var lines []string

	for i := 0; i < 50; i++ {
		for _, rdy := range p.Prepare(record("msg", "t1")) {
			lines = append(lines, string(rdy.Buffer.Bytes()))
		}
	}

	for _, rdy := range p.FlushStaged() {
		lines = append(lines, string(rdy.Buffer.Bytes()))
	}

	count := 0
	for _, l := range lines {
		count += strings.Count(l, ": msg\n")
	}

	assert.Equal(t, 50, count)
}
