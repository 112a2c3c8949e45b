package ksync

import (
	"sync/atomic"
	"unsafe"
)

// SpinMutex is a test-and-set spin lock providing mutually exclusive
// access to a value of type T. L is the LockAction policy invoked around
// every acquisition and release.
//
// Best-case latency is low (a single successful compare-and-swap), but
// worst-case latency is unbounded: there is no fairness between
// contending goroutines.
type SpinMutex[T any, L LockAction] struct {
	locked atomic.Bool
	data   T
}

// SpinMutexGuard provides access to the data protected by a SpinMutex.
// Release must be called exactly once, typically via defer, to give up
// the lock.
type SpinMutexGuard[T any, L LockAction] struct {
	mu    *SpinMutex[T, L]
	valid bool
}

// NewSpinMutex creates a SpinMutex wrapping the supplied value, unlocked.
func NewSpinMutex[T any, L LockAction](data T) *SpinMutex[T, L] {
	return &SpinMutex[T, L]{data: data}
}

// Lock acquires the mutex, spinning until it succeeds. It never fails.
func (m *SpinMutex[T, L]) Lock() *SpinMutexGuard[T, L] {
	hooksOf[L]().BeforeLock()
	w := newSpinWaiter(DefaultSpinPolicy)
	for !m.locked.CompareAndSwap(false, true) {
		for m.locked.Load() {
			w.wait()
		}
	}
	return &SpinMutexGuard[T, L]{mu: m, valid: true}
}

// TryLock makes one attempt to acquire the mutex. On failure it returns
// (nil, false) and still invokes AfterLock, matching the symmetry every
// other locking path in this package provides.
func (m *SpinMutex[T, L]) TryLock() (*SpinMutexGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	if m.locked.CompareAndSwap(false, true) {
		return &SpinMutexGuard[T, L]{mu: m, valid: true}, true
	}
	hooksOf[L]().AfterLock()
	return nil, false
}

// IsLocked reports whether the mutex is currently held. The result is
// advisory only and may be stale by the time the caller observes it.
func (m *SpinMutex[T, L]) IsLocked() bool {
	return m.locked.Load()
}

// GetMut returns a pointer to the protected data without taking the
// lock. Callers must have exclusive ownership of the SpinMutex (e.g.
// before sharing it with other goroutines) for this to be sound.
func (m *SpinMutex[T, L]) GetMut() *T {
	return &m.data
}

// IntoInner consumes the mutex and returns the protected value.
func (m *SpinMutex[T, L]) IntoInner() T {
	return m.data
}

// UnsafePointer returns a raw pointer to the protected data, for callers
// implementing a manual lock/unlock protocol atop ForceUnlock. The
// caller is responsible for all synchronization around its use.
func (m *SpinMutex[T, L]) UnsafePointer() unsafe.Pointer {
	return unsafe.Pointer(&m.data)
}

// ForceUnlock releases the lock without going through a guard. It is
// only valid when the calling goroutine actually holds the lock;
// calling it otherwise is undefined behavior and panics here.
func (m *SpinMutex[T, L]) ForceUnlock() {
	if !m.locked.CompareAndSwap(true, false) {
		panicMisuse(misuseForceUnlockNotHeld)
	}
	hooksOf[L]().AfterLock()
}

// Deref returns a pointer to the protected value. Named Deref rather than relying on
// operator overloading, since Go has none; Get/Set below are the
// idiomatic mutable-access pair.
func (g *SpinMutexGuard[T, L]) Deref() *T {
	return &g.mu.data
}

// Get returns a copy of the protected value.
func (g *SpinMutexGuard[T, L]) Get() T {
	return g.mu.data
}

// Set replaces the protected value.
func (g *SpinMutexGuard[T, L]) Set(v T) {
	g.mu.data = v
}

// Release gives up the lock. It must be called exactly once per guard.
func (g *SpinMutexGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.mu.locked.Store(false)
	hooksOf[L]().AfterLock()
}
