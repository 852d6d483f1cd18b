//go:build linux

package ring

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/hyp3rd/ewrap"
)

// io_uring mmap offsets and opcode, straight from linux/io_uring.h. The
// original reference implementation (MR::IO::IOUring, built on liburing)
// submits writes with io_uring_prep_write, which sets this same opcode and
// passes an offset of -1 to mean "use the file's current position", the
// same trick this file relies on below.
const (
	ioringOffSQRing = 0x00000000
	ioringOffCQRing = 0x08000000
	ioringOffSQEs   = 0x10000000

	ioringOpWrite = 23

	sqeSize = 64
	cqeSize = 16
)

// sqeRaw mirrors struct io_uring_sqe's first-64-bytes layout; only the
// fields a plain fd write needs are given real names, the rest is padding
// to keep the struct exactly sqeSize bytes so slicing the mmap'd SQE array
// by index is correct.
type sqeRaw struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	length      uint32
	rwFlags     uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFdIn  int32
	pad         [2]uint64
}

// cqeRaw mirrors struct io_uring_cqe.
type cqeRaw struct {
	userData uint64
	res      int32
	flags    uint32
}

// sqRingOffsets mirrors struct io_sqring_offsets: byte offsets, within the
// mmap'd SQ ring region, of each control field. Field order matters; it
// must match the kernel ABI exactly since io_uring_setup fills this in.
type sqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	resv2       uint64
}

// cqRingOffsets mirrors struct io_cqring_offsets.
type cqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	resv2       uint64
}

// uringParams mirrors struct io_uring_params, the argument/result of
// io_uring_setup.
type uringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFD         uint32
	resv         [3]uint32
	sqOff        sqRingOffsets
	cqOff        cqRingOffsets
}

// LinuxRing is the Linux implementation of Ring: a thin wrapper around one
// io_uring instance, grounded on MR::IO::IOUring's prepareWrite /
// submitPendingSQEs / processCompletions shape but expressed without a
// coroutine runtime, per spec.md section 9's design note on continuations.
type LinuxRing struct {
	fd          int
	sqEntries   uint32
	cqEntries   uint32
	sqMask      uint32
	cqMask      uint32
	sqRingMem   []byte
	cqRingMem   []byte
	sqesMem     []byte
	sqHead      *uint32
	sqTail      *uint32
	cqHead      *uint32
	cqTail      *uint32
	sqArray     []uint32
	sqes        []sqeRaw
	cqes        []cqeRaw
	sqTailLocal uint32
	nextToken   uint64
	outstanding map[uint64]*Continuation
	operational atomic.Bool
}

// New sets up an io_uring instance of the given submission queue depth and
// mmaps its submission/completion rings plus SQE array.
func New(depth uint32) (*LinuxRing, error) {
	if depth == 0 {
		depth = 1
	}

	var params uringParams

	fdRaw, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(depth), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, ewrap.Wrap(errno, "ring: io_uring_setup")
	}

	r := &LinuxRing{
		fd:          int(fdRaw),
		outstanding: make(map[uint64]*Continuation),
	}

	if err := r.mapRings(&params); err != nil {
		_ = unix.Close(r.fd)

		return nil, err
	}

	r.operational.Store(true)

	return r, nil
}

func (r *LinuxRing) mapRings(params *uringParams) error {
	sqRingSize := int(params.sqOff.array) + int(params.sqEntries)*4
	cqRingSize := int(params.cqOff.cqes) + int(params.cqEntries)*cqeSize
	sqesSize := int(params.sqEntries) * sqeSize

	sqRingMem, err := unix.Mmap(r.fd, ioringOffSQRing, sqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return ewrap.Wrap(err, "ring: mmap sq ring")
	}

	cqRingMem, err := unix.Mmap(r.fd, ioringOffCQRing, cqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(sqRingMem)

		return ewrap.Wrap(err, "ring: mmap cq ring")
	}

	sqesMem, err := unix.Mmap(r.fd, ioringOffSQEs, sqesSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(sqRingMem)
		_ = unix.Munmap(cqRingMem)

		return ewrap.Wrap(err, "ring: mmap sqes")
	}

	r.sqRingMem, r.cqRingMem, r.sqesMem = sqRingMem, cqRingMem, sqesMem
	r.sqEntries, r.cqEntries = params.sqEntries, params.cqEntries
	r.sqMask = *(*uint32)(unsafe.Pointer(&sqRingMem[params.sqOff.ringMask]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&cqRingMem[params.cqOff.ringMask]))
	r.sqHead = (*uint32)(unsafe.Pointer(&sqRingMem[params.sqOff.head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&sqRingMem[params.sqOff.tail]))
	r.cqHead = (*uint32)(unsafe.Pointer(&cqRingMem[params.cqOff.head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&cqRingMem[params.cqOff.tail]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&sqRingMem[params.sqOff.array])), params.sqEntries)
	r.sqes = unsafe.Slice((*sqeRaw)(unsafe.Pointer(&sqesMem[0])), params.sqEntries)
	r.cqes = unsafe.Slice((*cqeRaw)(unsafe.Pointer(&cqRingMem[params.cqOff.cqes])), params.cqEntries)

	// The submission array maps ring slot -> SQE index; an identity
	// mapping is the simplest valid assignment and is set up once.
	for i := range r.sqArray {
		r.sqArray[i] = uint32(i)
	}

	return nil
}

// PrepareWrite stages one write. At most sqEntries writes may be staged
// (and not yet submitted) at a time, spec.md's invariant (i) for C4.
func (r *LinuxRing) PrepareWrite(fd uintptr, data []byte, cont *Continuation) bool {
	if !r.IsOperational() || len(data) == 0 {
		return false
	}

	head := atomic.LoadUint32(r.sqHead)
	if r.sqTailLocal-head >= r.sqEntries {
		return false
	}

	idx := r.sqTailLocal & r.sqMask
	sqe := &r.sqes[idx]
	*sqe = sqeRaw{}
	sqe.opcode = ioringOpWrite
	sqe.fd = int32(fd)
	sqe.addr = uint64(uintptr(unsafe.Pointer(&data[0])))
	sqe.length = uint32(len(data))
	sqe.off = ^uint64(0) // -1: write at the file's current position.

	r.nextToken++
	token := r.nextToken
	sqe.userData = token
	r.outstanding[token] = cont

	r.sqTailLocal++
	atomic.StoreUint32(r.sqTail, r.sqTailLocal)

	return true
}

// Submit hands every SQE staged since the kernel last consumed one to
// io_uring_enter.
func (r *LinuxRing) Submit() bool {
	if !r.IsOperational() {
		return false
	}

	pending := r.sqTailLocal - atomic.LoadUint32(r.sqHead)
	if pending == 0 {
		return true
	}

	_, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(pending), 0, 0, 0, 0)
	if errno != 0 {
		r.MarkFailed()

		return false
	}

	return true
}

// ProcessCompletions drains every ready completion queue entry, resuming
// its Continuation, and advances the completion cursor. Idempotent over
// already-consumed entries: calling it with nothing ready is a no-op.
func (r *LinuxRing) ProcessCompletions() int {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)

	n := 0

	for head != tail {
		idx := head & r.cqMask
		cqe := r.cqes[idx]

		if cont, ok := r.outstanding[cqe.userData]; ok {
			cont.Resume(cqe.res)
			delete(r.outstanding, cqe.userData)
		}

		head++
		n++
	}

	if n > 0 {
		atomic.StoreUint32(r.cqHead, head)
	}

	return n
}

// WaitForCompletion blocks on the ring's own file descriptor, which is
// pollable for readability whenever a completion is queued, bounding the
// wait by timeout rather than calling io_uring_enter with GETEVENTS (which
// has no timeout of its own).
func (r *LinuxRing) WaitForCompletion(timeout time.Duration) bool {
	if atomic.LoadUint32(r.cqHead) != atomic.LoadUint32(r.cqTail) {
		return true
	}

	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}

	fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, ms)
	if err != nil || n <= 0 {
		return false
	}

	return true
}

// IsOperational reports the ring's atomic operational flag.
func (r *LinuxRing) IsOperational() bool {
	return r.operational.Load()
}

// MarkFailed flips the ring non-operational. Idempotent.
func (r *LinuxRing) MarkFailed() {
	r.operational.Store(false)
}

// Close unmaps the ring's memory and closes the io_uring file descriptor.
func (r *LinuxRing) Close() error {
	r.MarkFailed()

	var errs []error

	if r.sqRingMem != nil {
		errs = append(errs, unix.Munmap(r.sqRingMem))
	}

	if r.cqRingMem != nil {
		errs = append(errs, unix.Munmap(r.cqRingMem))
	}

	if r.sqesMem != nil {
		errs = append(errs, unix.Munmap(r.sqesMem))
	}

	errs = append(errs, unix.Close(r.fd))

	for _, err := range errs {
		if err != nil {
			return ewrap.Wrap(err, "ring: close")
		}
	}

	return nil
}
