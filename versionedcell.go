package ksync

import "sync/atomic"

// Cloner is the constraint RcuLock's protected type must satisfy: the
// writer needs to make a working copy of the current value without
// disturbing readers still looking at it. This is the Go-generics
// translation of the original's `T: Clone` bound.
type Cloner[T any] interface {
	Clone() T
}

// node is a single link in the at-most-two-element version chain a
// versionedCell maintains: the current value (held directly in the
// cell) and at most one successor, published by an in-flight writer.
// Once published, a node's value field is never mutated again - the
// only writer to it is the goroutine that owns the in-flight
// RcuWriteGuard, and that guard becomes invalid the moment Release
// publishes the node - so it is safe for any number of concurrent
// readers to copy out of it without additional synchronization.
type node[T Cloner[T]] struct {
	value T
}

// versionedCell is the internal single-writer, multi-reader versioned
// value store RcuLock is built on. It is unexported: RcuLock is the
// only public surface.
//
// The double-buffered borrowCount pair is the mechanism that lets a
// writer's grace-period wait be bounded: new readers arriving after the
// writer toggles currentIndex increment the *other* slot, so the writer
// only ever waits on readers that were already in flight when it
// started draining.
//
// Readers never keep a live pointer into the cell past the instant they
// take their snapshot: beginBorrowSnapshot copies the value out while
// registered as a borrower, and that copy is what the guard holds for
// its whole lifetime. This departs from the original's raw-reference
// scheme (safe there only under a borrow checker and careful unsafe
// bookkeeping) in favor of a scheme that is race-free under Go's memory
// model: nothing ever mutates memory a live guard might be reading
// without first publishing that mutation through the next/currentIndex
// atomics a reader is guaranteed to observe before it would look at the
// old memory again.
type versionedCell[T Cloner[T]] struct {
	value        T
	next         atomic.Pointer[node[T]]
	amWriting    atomic.Bool
	borrowCount  [2]atomic.Int64
	currentIndex atomic.Uint32
}

func newVersionedCell[T Cloner[T]](v T) *versionedCell[T] {
	return &versionedCell[T]{value: v}
}

// currentValue returns the version a reader or writer beginning right
// now should observe, per the version-selection rule: if no
// successor is published, that's the cell's own value; if one is
// published, readers follow it to the working copy the writer is
// building.
func (c *versionedCell[T]) currentValue() T {
	if n := c.next.Load(); n != nil {
		return n.value
	}
	return c.value
}

// beginBorrowSnapshot registers the calling goroutine as a borrower in
// whichever slot is current right now and returns both that slot (so
// the matching release decrements the same one) and a value snapshot
// taken while registered. The order matters: registering before reading
// the value ensures any writer that later waits on this slot is
// guaranteed to see our registration before it relies on the slot being
// empty.
func (c *versionedCell[T]) beginBorrowSnapshot() (int, T) {
	index := c.currentIndex.Load()
	c.borrowCount[index].Add(1)
	return int(index), c.currentValue()
}

func (c *versionedCell[T]) endBorrow(index int) {
	c.borrowCount[index].Add(-1)
}

// beginBorrow registers the calling goroutine as a borrower in whichever
// slot is current right now, without taking a value snapshot. Used by a
// writer to register its own in-flight write against the grace period it
// will later wait out.
func (c *versionedCell[T]) beginBorrow() int {
	index := c.currentIndex.Load()
	c.borrowCount[index].Add(1)
	return int(index)
}

// tryBeginWrite claims the single writer slot. It returns a working
// node cloned from the currently visible value, or nil if another
// writer already holds the slot.
func (c *versionedCell[T]) tryBeginWrite() *node[T] {
	if c.amWriting.Swap(true) {
		return nil
	}
	return &node[T]{value: c.currentValue().Clone()}
}

// publish makes the writer's working node visible to new readers,
// toggles the borrow-count slot so the writer's grace-period wait is
// bounded, waits out that grace period, then rotates the new version
// into place and drops the superseded node. policy governs the
// grace-period spin.
func (c *versionedCell[T]) publish(working *node[T], writerIndex int, policy SpinPolicy) {
	c.next.Store(working)
	c.currentIndex.Store(uint32(1 - writerIndex))
	c.endBorrow(writerIndex)

	w := newSpinWaiter(policy)
	for c.borrowCount[writerIndex].Load() > 0 {
		w.wait()
	}

	c.value = working.value
	c.next.Store(nil)
	c.amWriting.Store(false)
}
