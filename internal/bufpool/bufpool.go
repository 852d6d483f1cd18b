// Package bufpool implements the fixed-capacity, size-classed buffer pool
// that sits on the producer-to-writer path. It is the Go analogue of
// MR::Memory::Pool / MR::Memory::BufferPool from the reference
// implementation: three size classes (small/medium/large), each backed by a
// fixed slot array, with a heap fallback for anything larger than the
// largest class.
package bufpool

import (
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
)

// Buffer is an owned, contiguous byte region. At most one holder exists at
// any time: whoever called Acquire (or received it from Release's caller)
// owns it until they call Release.
type Buffer struct {
	data  []byte
	size  int
	class int // index into BufferPool.pools, or oversizeClass
}

// Bytes returns the in-use portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.size]
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Size returns the number of bytes currently written into the buffer.
func (b *Buffer) Size() int {
	return b.size
}

// SetSize records how many bytes of the buffer are in use. It does not
// grow the underlying slice; callers must stay within Cap().
func (b *Buffer) SetSize(n int) {
	b.size = n
}

// Raw exposes the full-capacity backing slice so a formatter can write
// directly into it before calling SetSize.
func (b *Buffer) Raw() []byte {
	return b.data
}

const oversizeClass = -1

// pool is one fixed-size slot array plus the mutex guarding it, the
// direct analogue of MR::Memory::Pool.
type pool struct {
	mu        sync.Mutex
	slots     []*Buffer
	capacity  int
	bufSize   int
	nextIndex uint64
}

func newPool(n, bufSize int) *pool {
	p := &pool{
		slots:    make([]*Buffer, n),
		capacity: n,
		bufSize:  bufSize,
	}

	for i := range p.slots {
		p.slots[i] = &Buffer{data: make([]byte, bufSize), class: -2}
	}

	return p
}

// tryAcquire scans the slot array from a rotating cursor, the same policy
// Pool::tryAcquire uses, and returns nil if every slot is currently
// checked out.
func (p *pool) tryAcquire() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.capacity; i++ {
		idx := int(atomic.AddUint64(&p.nextIndex, 1)-1) % p.capacity
		if p.slots[idx] != nil {
			buf := p.slots[idx]
			p.slots[idx] = nil
			buf.size = 0

			return buf
		}
	}

	return nil
}

// tryRelease places buf into the first empty slot. It returns false
// (drop the buffer) if the capacity doesn't match this pool's band or
// every slot is occupied.
func (p *pool) tryRelease(buf *Buffer) bool {
	if cap(buf.data) != p.bufSize {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.capacity; i++ {
		if p.slots[i] == nil {
			p.slots[i] = buf

			return true
		}
	}

	return false
}

// available returns the number of slots currently holding a free buffer.
func (p *pool) available() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0

	for _, s := range p.slots {
		if s != nil {
			n++
		}
	}

	return n
}

// SizeClass identifies which band a BufferPool serves.
type SizeClass int

// Size-class bands, matching spec.md section 4.1.
const (
	Small SizeClass = iota
	Medium
	Large
	numClasses
)

// Config sets the slot counts and byte capacities for each size class.
type Config struct {
	SmallPoolSize, MediumPoolSize, LargePoolSize int
	SmallBufSize, MediumBufSize, LargeBufSize    int
}

// DefaultConfig matches spec.md section 6's defaults: 1/4/16 KiB bands.
func DefaultConfig() Config {
	const (
		kib            = 1024
		defaultPoolLen = 64
	)

	return Config{
		SmallPoolSize:  defaultPoolLen,
		MediumPoolSize: defaultPoolLen,
		LargePoolSize:  defaultPoolLen,
		SmallBufSize:   1 * kib,
		MediumBufSize:  4 * kib,
		LargeBufSize:   16 * kib,
	}
}

// BufferPool is the three-class pool described by spec.md's C1. Acquire
// and Release are both thread-safe and allocation-free on the hot path
// whenever a slot is available.
type BufferPool struct {
	pools      [numClasses]*pool
	oversized  atomic.Int64 // diagnostic counter, not part of any invariant
	oversizeOK bool
}

// New constructs a BufferPool with each class preallocated and full, per
// spec.md's Pool lifecycle ("constructed eagerly full").
func New(cfg Config) *BufferPool {
	bp := &BufferPool{oversizeOK: true}
	bp.pools[Small] = newPool(cfg.SmallPoolSize, cfg.SmallBufSize)
	bp.pools[Medium] = newPool(cfg.MediumPoolSize, cfg.MediumBufSize)
	bp.pools[Large] = newPool(cfg.LargePoolSize, cfg.LargeBufSize)

	return bp
}

// Acquire returns exclusive ownership of a Buffer whose capacity is at
// least n. If n exceeds the largest band, Acquire falls back to a
// freshly-allocated oversize buffer; pool exhaustion is not an error for
// the same reason.
func (bp *BufferPool) Acquire(n int) *Buffer {
	for class := Small; class < numClasses; class++ {
		p := bp.pools[class]
		if n > p.bufSize {
			continue
		}

		if buf := p.tryAcquire(); buf != nil {
			buf.class = int(class)

			return buf
		}

		break
	}

	bp.oversized.Add(1)

	return &Buffer{data: make([]byte, n), class: oversizeClass}
}

// Release returns buf to the pool it came from. Oversize buffers, and
// buffers whose capacity no longer matches any band, are dropped (freed
// by the garbage collector) rather than leaked or mis-filed.
func (bp *BufferPool) Release(buf *Buffer) {
	if buf == nil {
		return
	}

	if buf.class < 0 || buf.class >= int(numClasses) {
		return
	}

	buf.size = 0
	p := bp.pools[buf.class]

	if !p.tryRelease(buf) {
		// slot array is full or the capacity band has drifted; drop it.
		return
	}
}

// Stats reports available/outstanding slots for each class. By
// construction Available + Outstanding always equals Capacity, the
// invariant spec.md requires at every quiescent point.
type Stats struct {
	Capacity, Available, Outstanding int
}

// Stats returns the current slot accounting for one size class.
func (bp *BufferPool) Stats(class SizeClass) (Stats, error) {
	if class < 0 || class >= numClasses {
		return Stats{}, ewrap.New("bufpool: invalid size class")
	}

	p := bp.pools[class]
	avail := p.available()

	return Stats{Capacity: p.capacity, Available: avail, Outstanding: p.capacity - avail}, nil
}
