package ksync

import "sync/atomic"

// RwLock lets any number of readers, or exactly one writer, access a
// value of type T at a time. It additionally supports an upgradable-read
// mode: a reader that reserves the right to become the next writer
// without contending with other would-be writers.
//
// Its state is packed into a single atomic word, the same idiom the
// teacher's intention lock uses to pack four holder counts into one
// uint64 - here there are only three fields, so they fit comfortably
// with room for a very large reader count:
//
//	|63                                  2|1          |0       |
//	\            READER count            / \UPGRADABLE/ \WRITER/
type RwLock[T any, L LockAction] struct {
	state atomic.Uint64
	data  T
}

const (
	rwWriterBit     uint64 = 1 << 0
	rwUpgradableBit uint64 = 1 << 1
	rwReaderUnit    uint64 = 1 << 2
)

func rwHasWriter(state uint64) bool     { return state&rwWriterBit != 0 }
func rwHasUpgradable(state uint64) bool { return state&rwUpgradableBit != 0 }
func rwReaderCount(state uint64) uint64 { return state >> 2 }

func rwCompatibleWithRead(state uint64) bool {
	return !rwHasWriter(state)
}

func rwCompatibleWithUpgradable(state uint64) bool {
	return !rwHasWriter(state) && !rwHasUpgradable(state)
}

// rwClearBit clears a single flag bit (writerBit or upgradableBit) via a
// CAS retry loop.
func rwClearBit(state *atomic.Uint64, bit uint64) {
	for {
		old := state.Load()
		if state.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

// rwReleaseReader decrements the reader count via a CAS retry loop.
func rwReleaseReader(state *atomic.Uint64) {
	for {
		old := state.Load()
		if state.CompareAndSwap(old, old-rwReaderUnit) {
			return
		}
	}
}

// ReadGuard provides read-only access to the data protected by an
// RwLock. Release must be called exactly once.
type ReadGuard[T any, L LockAction] struct {
	lock  *RwLock[T, L]
	valid bool
}

// WriteGuard provides exclusive, mutable access to the data protected
// by an RwLock. Release must be called exactly once.
type WriteGuard[T any, L LockAction] struct {
	lock  *RwLock[T, L]
	valid bool
}

// UpgradableGuard reserves the right to become the next writer, while
// coexisting with plain readers. Release must be called exactly once,
// unless Upgrade consumes the guard first.
type UpgradableGuard[T any, L LockAction] struct {
	lock  *RwLock[T, L]
	valid bool
}

// NewRwLock creates an RwLock wrapping the supplied value, unlocked.
func NewRwLock[T any, L LockAction](data T) *RwLock[T, L] {
	return &RwLock[T, L]{data: data}
}

// Read acquires the lock for shared read access, spinning while a
// writer holds it.
func (rw *RwLock[T, L]) Read() *ReadGuard[T, L] {
	hooksOf[L]().BeforeLock()
	w := newSpinWaiter(DefaultSpinPolicy)
	for {
		state := rw.state.Load()
		if rwCompatibleWithRead(state) && rw.state.CompareAndSwap(state, state+rwReaderUnit) {
			return &ReadGuard[T, L]{lock: rw, valid: true}
		}
		w.wait()
	}
}

// TryRead makes one attempt to acquire shared read access. On failure
// it returns (nil, false) and still invokes AfterLock.
func (rw *RwLock[T, L]) TryRead() (*ReadGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	state := rw.state.Load()
	if rwCompatibleWithRead(state) && rw.state.CompareAndSwap(state, state+rwReaderUnit) {
		return &ReadGuard[T, L]{lock: rw, valid: true}, true
	}
	hooksOf[L]().AfterLock()
	return nil, false
}

// Write acquires the lock for exclusive access, spinning while any
// reader, writer, or upgradable-reader holds it.
func (rw *RwLock[T, L]) Write() *WriteGuard[T, L] {
	hooksOf[L]().BeforeLock()
	w := newSpinWaiter(DefaultSpinPolicy)
	for {
		if rw.state.CompareAndSwap(0, rwWriterBit) {
			return &WriteGuard[T, L]{lock: rw, valid: true}
		}
		w.wait()
	}
}

// TryWrite makes one attempt to acquire exclusive access. On failure it
// returns (nil, false) and still invokes AfterLock.
func (rw *RwLock[T, L]) TryWrite() (*WriteGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	if rw.state.CompareAndSwap(0, rwWriterBit) {
		return &WriteGuard[T, L]{lock: rw, valid: true}, true
	}
	hooksOf[L]().AfterLock()
	return nil, false
}

// UpgradableRead acquires the lock in upgradable-read mode: it coexists
// with plain readers but excludes a writer or another upgradable
// reader, spinning until that holds.
func (rw *RwLock[T, L]) UpgradableRead() *UpgradableGuard[T, L] {
	hooksOf[L]().BeforeLock()
	w := newSpinWaiter(DefaultSpinPolicy)
	for {
		state := rw.state.Load()
		if rwCompatibleWithUpgradable(state) && rw.state.CompareAndSwap(state, state|rwUpgradableBit) {
			return &UpgradableGuard[T, L]{lock: rw, valid: true}
		}
		w.wait()
	}
}

// TryUpgradableRead makes one attempt to acquire upgradable-read access.
func (rw *RwLock[T, L]) TryUpgradableRead() (*UpgradableGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	state := rw.state.Load()
	if rwCompatibleWithUpgradable(state) && rw.state.CompareAndSwap(state, state|rwUpgradableBit) {
		return &UpgradableGuard[T, L]{lock: rw, valid: true}, true
	}
	hooksOf[L]().AfterLock()
	return nil, false
}

// Deref returns a pointer to the protected value.
func (g *ReadGuard[T, L]) Deref() *T {
	return &g.lock.data
}

// Get returns a copy of the protected value.
func (g *ReadGuard[T, L]) Get() T {
	return g.lock.data
}

// Release gives up the read claim.
func (g *ReadGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	rwReleaseReader(&g.lock.state)
	hooksOf[L]().AfterLock()
}

// Deref returns a pointer to the protected value.
func (g *WriteGuard[T, L]) Deref() *T {
	return &g.lock.data
}

// Get returns a copy of the protected value.
func (g *WriteGuard[T, L]) Get() T {
	return g.lock.data
}

// Set replaces the protected value.
func (g *WriteGuard[T, L]) Set(v T) {
	g.lock.data = v
}

// Downgrade converts exclusive access into shared read access in one
// atomic step, consuming the write guard and returning a read guard.
func (g *WriteGuard[T, L]) Downgrade() *ReadGuard[T, L] {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.lock.state.Store(rwReaderUnit)
	return &ReadGuard[T, L]{lock: g.lock, valid: true}
}

// Release gives up exclusive access.
func (g *WriteGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.lock.state.Store(0)
	hooksOf[L]().AfterLock()
}

// Deref returns a pointer to the protected value.
func (g *UpgradableGuard[T, L]) Deref() *T {
	return &g.lock.data
}

// Get returns a copy of the protected value.
func (g *UpgradableGuard[T, L]) Get() T {
	return g.lock.data
}

// Upgrade waits until all plain readers have released, then converts
// the upgradable claim into exclusive write access in one atomic step.
// It consumes the upgradable guard.
func (g *UpgradableGuard[T, L]) Upgrade() *WriteGuard[T, L] {
	if !g.valid {
		panicMisuse(misuseUpgradeNotHeld)
	}
	w := newSpinWaiter(DefaultSpinPolicy)
	for {
		state := g.lock.state.Load()
		if rwReaderCount(state) == 0 {
			if g.lock.state.CompareAndSwap(state, rwWriterBit) {
				break
			}
			continue
		}
		w.wait()
	}
	g.valid = false
	return &WriteGuard[T, L]{lock: g.lock, valid: true}
}

// Release gives up the upgradable-read claim without becoming a writer.
func (g *UpgradableGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	rwClearBit(&g.lock.state, rwUpgradableBit)
	hooksOf[L]().AfterLock()
}
