package ksync

// RcuLock is an RwLock-like façade over a versionedCell: readers never
// block behind a writer, a writer's Release waits only for the readers
// already registered in its own slot (the grace period), and at most
// one writer may be in flight. T must be Cloner[T] since the
// writer always works from a private copy.
//
// RcuLock is a handle, not a container: copying it (via Clone, or by
// value assignment) shares the same underlying versionedCell, the same
// way the original's Arc-backed handle did. Go's garbage collector
// keeps the cell alive for as long as any handle or guard can reach it,
// so there is no manual reference count to maintain.
type RcuLock[T Cloner[T], L LockAction] struct {
	cell *versionedCell[T]
}

// RcuReadGuard lets a reader dereference a stable snapshot of the
// protected value. The snapshot is taken at acquisition time and stays
// valid for the guard's entire lifetime even if writers publish and
// retire new versions while it is held.
type RcuReadGuard[T Cloner[T], L LockAction] struct {
	cell     *versionedCell[T]
	index    int
	snapshot T
	valid    bool
}

// RcuWriteGuard provides mutable access to the writer's private working
// copy. Release publishes it, runs the grace-period wait, and rotates
// it into place.
type RcuWriteGuard[T Cloner[T], L LockAction] struct {
	cell    *versionedCell[T]
	working *node[T]
	index   int
	valid   bool
}

// NewRcuLock creates an RcuLock wrapping the supplied value.
func NewRcuLock[T Cloner[T], L LockAction](data T) RcuLock[T, L] {
	return RcuLock[T, L]{cell: newVersionedCell[T](data)}
}

// Clone returns a new handle sharing the same underlying versionedCell.
// Safe to call from any goroutine holding the lock, and safe to send
// the result to another goroutine.
func (r RcuLock[T, L]) Clone() RcuLock[T, L] {
	return RcuLock[T, L]{cell: r.cell}
}

// Read acquires a read snapshot. It never blocks on a writer; a writer
// that is already in flight must wait for this guard's Release before
// its own Release returns.
func (r RcuLock[T, L]) Read() *RcuReadGuard[T, L] {
	hooksOf[L]().BeforeLock()
	index, snapshot := r.cell.beginBorrowSnapshot()
	return &RcuReadGuard[T, L]{cell: r.cell, index: index, snapshot: snapshot, valid: true}
}

// Write acquires the single writer slot, spinning if another writer is
// already in flight.
func (r RcuLock[T, L]) Write() *RcuWriteGuard[T, L] {
	hooksOf[L]().BeforeLock()
	w := newSpinWaiter(DefaultSpinPolicy)
	for {
		if working := r.cell.tryBeginWrite(); working != nil {
			index := r.cell.beginBorrow()
			return &RcuWriteGuard[T, L]{cell: r.cell, working: working, index: index, valid: true}
		}
		w.wait()
	}
}

// TryWrite makes one attempt to acquire the writer slot. On failure it
// returns (nil, false) and still invokes AfterLock.
func (r RcuLock[T, L]) TryWrite() (*RcuWriteGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	working := r.cell.tryBeginWrite()
	if working == nil {
		hooksOf[L]().AfterLock()
		return nil, false
	}
	index := r.cell.beginBorrow()
	return &RcuWriteGuard[T, L]{cell: r.cell, working: working, index: index, valid: true}, true
}

// Deref returns a pointer to the stable snapshot this guard observed at
// acquisition.
func (g *RcuReadGuard[T, L]) Deref() *T {
	return &g.snapshot
}

// Get returns a copy of the snapshot value.
func (g *RcuReadGuard[T, L]) Get() T {
	return g.snapshot
}

// Release gives up the read claim.
func (g *RcuReadGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.cell.endBorrow(g.index)
	hooksOf[L]().AfterLock()
}

// Deref returns a pointer to the writer's private working copy.
func (g *RcuWriteGuard[T, L]) Deref() *T {
	return &g.working.value
}

// Get returns a copy of the writer's working value.
func (g *RcuWriteGuard[T, L]) Get() T {
	return g.working.value
}

// Set replaces the writer's working value.
func (g *RcuWriteGuard[T, L]) Set(v T) {
	g.working.value = v
}

// Release publishes the working copy, waits for the grace period (every
// reader that might still be borrowing the writer's own slot) to drain,
// then rotates the new version into place. It must be called exactly
// once.
func (g *RcuWriteGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.cell.publish(g.working, g.index, DefaultSpinPolicy)
	hooksOf[L]().AfterLock()
}
