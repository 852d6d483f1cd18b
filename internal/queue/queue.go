// Package queue implements the multi-producer/single-consumer hand-off
// queue (spec.md C2) that carries Records from producer goroutines to the
// single worker. It is grounded on the channel-plus-overflow-strategy shape
// of the teacher repo's internal/output.AsyncWriter, generalized to the
// bounded/unbounded split spec.md's ThreadSafeQueue names and to Record
// values instead of raw byte payloads.
package queue

import (
	"sync"
	"sync/atomic"
)

// Record is the payload the queue carries. Level, ThreadID and Timestamp
// are set by the producer; Sequence is filled in by Push when sequence
// tagging is enabled.
type Record struct {
	Level     uint8
	Payload   []byte
	ThreadID  string
	Timestamp int64 // UnixNano
	Sequence  uint64
}

// Queue is the interface both variants satisfy, and the extension point
// spec.md's "queue" config option names (a caller may supply its own
// implementation, e.g. a lock-free MPMC queue, in place of either stock
// variant).
type Queue interface {
	// Push enqueues r. After Shutdown, Push is a no-op.
	Push(r Record)
	// Pop blocks until a Record is available or the queue is shut down
	// and empty, in which case ok is false.
	Pop() (r Record, ok bool)
	// TryPop returns immediately; ok is false whenever the queue is
	// empty, shut down or not.
	TryPop() (r Record, ok bool)
	// Len returns a point-in-time snapshot of the queue's size.
	Len() int
	// Shutdown is idempotent and wakes every blocked Push/Pop.
	Shutdown()
}

// sequencer assigns the globally-monotone test-only sequence number
// spec.md section 4.2 describes. It is shared by both variants so
// ordering can be verified across producers regardless of which queue
// implementation is in use.
type sequencer struct {
	enabled bool
	counter atomic.Uint64
}

func (s *sequencer) tag(r *Record) {
	if s == nil || !s.enabled {
		return
	}

	r.Sequence = s.counter.Add(1)
}

// Unbounded is a blocking FIFO queue with no capacity limit: Push never
// blocks. It is backed by a mutex/condition-variable pair, the same
// primitive pairing spec.md section 4.2 names for the reference
// implementation's StdQueue.
type Unbounded struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	items    []Record
	shutdown bool
	seq      sequencer
}

// NewUnbounded constructs an empty unbounded queue. Set sequenceTagging
// to assign a monotone Record.Sequence on every successful Push.
func NewUnbounded(sequenceTagging bool) *Unbounded {
	q := &Unbounded{seq: sequencer{enabled: sequenceTagging}}
	q.notEmpty.L = &q.mu

	return q
}

// Push appends r to the tail. Never blocks. No-op once shut down.
func (q *Unbounded) Push(r Record) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}

	q.seq.tag(&r)
	q.items = append(q.items, r)
	q.notEmpty.Signal()
}

// Pop blocks while the queue is empty and not shut down.
func (q *Unbounded) Pop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.shutdown {
			return Record{}, false
		}

		q.notEmpty.Wait()
	}

	return q.popLocked()
}

// TryPop never blocks; it reports absent whenever the queue is empty.
func (q *Unbounded) TryPop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Record{}, false
	}

	return q.popLocked()
}

func (q *Unbounded) popLocked() (Record, bool) {
	r := q.items[0]
	q.items[0] = Record{}
	q.items = q.items[1:]

	return r, true
}

// Len reports a snapshot of the queue's current size.
func (q *Unbounded) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Shutdown unblocks every waiter and makes subsequent Pushes no-ops.
// Idempotent.
func (q *Unbounded) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}

	q.shutdown = true
	q.notEmpty.Broadcast()
}

// Bounded is a fixed-capacity ring buffer. Push blocks while full; Pop
// blocks while empty. Capacity should be a power of two for the fastest
// index wraparound, though any positive value works.
type Bounded struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	ring     []Record
	head     int
	count    int
	shutdown bool
	seq      sequencer
}

// NewBounded constructs a ring queue with room for capacity Records.
func NewBounded(capacity int, sequenceTagging bool) *Bounded {
	if capacity < 1 {
		capacity = 1
	}

	q := &Bounded{ring: make([]Record, capacity), seq: sequencer{enabled: sequenceTagging}}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu

	return q
}

// Push blocks until there is room or the queue is shut down, in which
// case the push becomes a no-op (matching Unbounded's shutdown contract).
func (q *Bounded) Push(r Record) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.ring) && !q.shutdown {
		q.notFull.Wait()
	}

	if q.shutdown {
		return
	}

	q.seq.tag(&r)
	tail := (q.head + q.count) % len(q.ring)
	q.ring[tail] = r
	q.count++
	q.notEmpty.Signal()
}

// Pop blocks while empty and not shut down.
func (q *Bounded) Pop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 {
		if q.shutdown {
			return Record{}, false
		}

		q.notEmpty.Wait()
	}

	return q.popLocked()
}

// TryPop never blocks.
func (q *Bounded) TryPop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Record{}, false
	}

	return q.popLocked()
}

func (q *Bounded) popLocked() (Record, bool) {
	r := q.ring[q.head]
	q.ring[q.head] = Record{}
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.notFull.Signal()

	return r, true
}

// Len reports a snapshot of the queue's current size.
func (q *Bounded) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

// Shutdown unblocks every waiter (both Push and Pop) and disables
// further enqueues. Idempotent.
func (q *Bounded) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}

	q.shutdown = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

var (
	_ Queue = (*Unbounded)(nil)
	_ Queue = (*Bounded)(nil)
)
