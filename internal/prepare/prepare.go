// Package prepare implements spec.md's C5 WritePreparer: it turns Records
// into formatted, pooled Buffers, optionally coalescing up to K records
// into one staging area before handing a buffer back to the event loop. It
// is grounded on the formatting/coalescing shape of
// MR::IO::WritePreparer::prepareCoalescedWrite in _examples/original_source,
// restated in Go without the coroutine plumbing the original uses.
package prepare

import (
	"strconv"
	"time"

	"github.com/ringlog/ringlog/internal/bufpool"
	"github.com/ringlog/ringlog/internal/queue"
)

const (
	// defaultStagingCapacity is spec.md section 4.5's default S.
	defaultStagingCapacity = 16 * 1024
	// stagingFlushRatio is the 90%-of-S occupancy threshold spec.md
	// section 4.5 names for flushing the staging buffer early.
	stagingFlushRatio = 0.9
	// individualHeadroom is the +256 bytes spec.md section 4.5 adds to
	// a non-coalesced buffer's size to make room for the line prefix. A
	// line that still exceeds the acquired buffer's capacity is
	// truncated (see formatIndividual).
	individualHeadroom = 256
)

var levelNames = [...]string{"INFO", "WARN", "ERROR"}

func levelName(level uint8) string {
	if int(level) < len(levelNames) {
		return levelNames[level]
	}

	return levelNames[0]
}

// Config configures a Preparer.
type Config struct {
	// CoalesceSize is K: the maximum records packed into one buffer.
	// K <= 1 disables coalescing.
	CoalesceSize int
	// StagingCapacity is S, in bytes. Zero uses the 16 KiB default.
	StagingCapacity int
	// SequenceTagging inserts "[Seq: <n>]" into the formatted prefix,
	// spec.md section 4.5's test-only ordering aid.
	SequenceTagging bool
}

// Ready is one buffer the Preparer has finished with: either a single
// formatted record or a coalesced batch, plus whether the event loop
// should submit it right away rather than waiting for batch_size.
//
// spec.md describes Prepare's return shape as a single (Buffer,
// should_submit_now) pair or (none, false). The overflow case in section
// 4.5 ("flush first, then format the record into a freshly-sized pooled
// buffer") produces two ready buffers from one incoming Record, so Prepare
// returns a slice here instead of a single pair — an equivalent contract
// (spec.md section 9 explicitly allows equivalent realizations) that still
// guarantees no record's bytes are ever lost.
type Ready struct {
	Buffer       *bufpool.Buffer
	ShouldSubmit bool
}

// Preparer implements spec.md's C5. It is used exclusively by the worker
// goroutine; nothing here is safe for concurrent callers.
type Preparer struct {
	pool       *bufpool.BufferPool
	coalesce   int
	stagingCap int
	seqTagging bool

	staging    []byte
	stagedMsgs int
	scratch    []byte
}

// New constructs a Preparer backed by pool.
func New(pool *bufpool.BufferPool, cfg Config) *Preparer {
	stagingCap := cfg.StagingCapacity
	if stagingCap <= 0 {
		stagingCap = defaultStagingCapacity
	}

	p := &Preparer{
		pool:       pool,
		coalesce:   cfg.CoalesceSize,
		stagingCap: stagingCap,
		seqTagging: cfg.SequenceTagging,
	}

	if p.coalesce > 1 {
		p.staging = make([]byte, 0, stagingCap)
	}

	p.scratch = make([]byte, 0, 256)

	return p
}

// format appends one record's exact on-disk line —
// "[<timestamp>] [<LEVEL>] [Thread: <tid>]: <payload>\n", with
// "[Seq: <n>]" inserted before the colon when sequence tagging is enabled
// — to dst and returns the result.
func (p *Preparer) format(dst []byte, r queue.Record) []byte {
	dst = append(dst, '[')
	dst = append(dst, time.Unix(0, r.Timestamp).UTC().Format(time.RFC3339Nano)...)
	dst = append(dst, "] ["...)
	dst = append(dst, levelName(r.Level)...)
	dst = append(dst, "] [Thread: "...)
	dst = append(dst, r.ThreadID...)
	dst = append(dst, ']')

	if p.seqTagging {
		dst = append(dst, " [Seq: "...)
		dst = strconv.AppendUint(dst, r.Sequence, 10)
		dst = append(dst, ']')
	}

	dst = append(dst, ": "...)
	dst = append(dst, r.Payload...)
	dst = append(dst, '\n')

	return dst
}

// Prepare formats r and returns zero or more Ready buffers for the event
// loop to schedule. With coalescing disabled it always returns exactly
// one. With coalescing enabled it usually stages the record and returns
// nothing; it returns a flushed batch when K is reached or staging
// occupancy crosses the 90% threshold, and both a flushed batch and a
// freshly-formatted individual buffer when r itself would overflow the
// staging area.
func (p *Preparer) Prepare(r queue.Record) []Ready {
	if p.coalesce <= 1 {
		return []Ready{p.formatIndividual(r)}
	}

	p.scratch = p.format(p.scratch[:0], r)

	if len(p.staging)+len(p.scratch) > p.stagingCap {
		var out []Ready

		if flushed := p.flushStagedInternal(); flushed != nil {
			out = append(out, *flushed)
		}

		out = append(out, p.individualFromScratch())

		return out
	}

	p.staging = append(p.staging, p.scratch...)
	p.stagedMsgs++

	threshold := int(float64(p.stagingCap) * stagingFlushRatio)
	if p.stagedMsgs >= p.coalesce || len(p.staging) >= threshold {
		if flushed := p.flushStagedInternal(); flushed != nil {
			return []Ready{*flushed}
		}
	}

	return nil
}

// FlushStaged forces emission of whatever is currently staged. It returns
// nil if nothing was staged.
func (p *Preparer) FlushStaged() []Ready {
	if flushed := p.flushStagedInternal(); flushed != nil {
		return []Ready{*flushed}
	}

	return nil
}

func (p *Preparer) flushStagedInternal() *Ready {
	if p.stagedMsgs == 0 {
		return nil
	}

	buf := p.pool.Acquire(len(p.staging))
	n := copy(buf.Raw(), p.staging)
	buf.SetSize(n)

	p.staging = p.staging[:0]
	p.stagedMsgs = 0

	return &Ready{Buffer: buf, ShouldSubmit: true}
}

// formatIndividual formats r into a freshly-sized pooled buffer per
// spec.md's non-coalescing path: capacity len(payload)+256. The line is
// formatted into the growable scratch slice first and then copied into
// buf's fixed-capacity backing array, truncating if the prefix somehow
// outgrows the 256-byte headroom — the Go analogue of the original's
// fmt::format_to_n(buffer, capacity-1, ...) bound. Formatting straight
// into buf.Raw() via append would silently reallocate past that bound,
// decoupling the returned buffer from the pool's backing array.
func (p *Preparer) formatIndividual(r queue.Record) Ready {
	buf := p.pool.Acquire(len(r.Payload) + individualHeadroom)

	p.scratch = p.format(p.scratch[:0], r)

	n := copy(buf.Raw(), p.scratch)
	buf.SetSize(n)

	return Ready{Buffer: buf, ShouldSubmit: false}
}

// individualFromScratch formats the already-computed p.scratch line into
// an exactly-sized pooled buffer: the overflow branch of the coalescing
// path, where the record has already been formatted once to measure it.
func (p *Preparer) individualFromScratch() Ready {
	buf := p.pool.Acquire(len(p.scratch))
	n := copy(buf.Raw(), p.scratch)
	buf.SetSize(n)

	return Ready{Buffer: buf, ShouldSubmit: false}
}
