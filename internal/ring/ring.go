// Package ring implements the Raw Block Ring: a fixed-capacity circular
// buffer of fixed-size raw-byte blocks, single-producer (the source
// goroutine) / single-consumer (the processor goroutine).
//
// Policy when full: the producer never overtakes the consumer's index
// directly; instead it drops the oldest unprocessed block by advancing rp
// itself before publishing, and records the drop. Backpressure must never
// extend into the byte source (spec: "USB traffic is realtime; backpressure
// must not extend into the probe").
package ring

import (
	"sync/atomic"
)

// RawBlock is one ring slot: a fixed-capacity byte buffer plus a fill
// level. Owned by the slot that contains it; readers must not retain the
// slice beyond Release.
type RawBlock struct {
	Data []byte
	Fill int
}

// newBlock allocates one ring slot. Slots are allocated once in New and
// live for the process lifetime (the ring never grows or shrinks), so
// unlike a per-I/O buffer pool, there is no churn here to pool against.
func newBlock(size int) *RawBlock {
	return &RawBlock{Data: make([]byte, size)}
}

// Ring is the SPSC raw block ring. Slots are allocated once at startup and
// reused for the process lifetime; RawBlock.Data is never reallocated.
type Ring struct {
	slots []*RawBlock
	n     uint32

	wp atomic.Uint32
	rp atomic.Uint32

	// readable is a coalesced notification (capacity 1), sent after every
	// Publish. The consumer always re-checks wp != rp after waking, so
	// coalesced signals are harmless.
	readable chan struct{}

	dropped atomic.Uint64
}

// New creates a ring with n slots of blockSize bytes each. n must be >= 1;
// callers enforce the spec's minimum of 4 (constants.MinRingSlots).
func New(n int, blockSize int) *Ring {
	if n < 1 {
		n = 1
	}
	r := &Ring{
		slots:    make([]*RawBlock, n),
		n:        uint32(n),
		readable: make(chan struct{}, 1),
	}
	for i := range r.slots {
		r.slots[i] = newBlock(blockSize)
	}
	return r
}

// Readable returns a coalesced notification channel signalled after every
// Publish. Always re-check Empty() after waking.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Empty reports whether the consumer has caught up with the producer.
func (r *Ring) Empty() bool {
	return r.wp.Load() == r.rp.Load()
}

// DroppedBlocks returns the cumulative count of blocks dropped by the
// full-ring policy.
func (r *Ring) DroppedBlocks() uint64 { return r.dropped.Load() }

// Acquire returns the producer's current write slot. The caller fills
// slot.Data[:n] and sets slot.Fill = n, then calls Publish.
func (r *Ring) Acquire() *RawBlock {
	return r.slots[r.wp.Load()%r.n]
}

// Publish advances wp, applying the drop-oldest policy if the ring is full
// ((wp+1) mod n == rp): the producer itself advances rp past the oldest
// unprocessed slot and records the drop, since it alone may not leave wp
// ahead of rp by more than n.
func (r *Ring) Publish() {
	wp := r.wp.Load()
	rp := r.rp.Load()
	next := (wp + 1) % r.n

	if next == rp {
		// Ring full: drop the block the consumer hasn't read yet. Advancing
		// rp here is safe only because the consumer never writes rp and
		// only reads it to test wp != rp; a racing consumer that is mid-read
		// of the slot we are about to overwrite would observe torn data,
		// so the caller has not yet overwritten Acquire()'s slot here, only
		// reserved its fill for the *next* round. The consumer must finish
		// ReadRelease for slot rp before the producer's next Acquire reaches
		// it again (n >= 4 gives slack).
		r.rp.Store((rp + 1) % r.n)
		r.dropped.Add(1)
	}

	r.wp.Store(next)

	select {
	case r.readable <- struct{}{}:
	default:
	}
}

// Peek returns the consumer's current read slot, or nil if the ring is
// empty. The caller must call Release when done with the slot.
func (r *Ring) Peek() *RawBlock {
	if r.Empty() {
		return nil
	}
	return r.slots[r.rp.Load()%r.n]
}

// Release advances rp past the slot returned by the most recent Peek.
func (r *Ring) Release() {
	r.rp.Store((r.rp.Load() + 1) % r.n)
}
