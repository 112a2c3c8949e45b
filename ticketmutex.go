package ksync

import "sync/atomic"

// TicketMutex is a FIFO spin lock providing mutually exclusive access to
// a value of type T. Waiting goroutines take a ticket in arrival order
// and spin until their ticket is the one being served.
//
// Worst-case latency is bounded by the number of goroutines ahead in
// line, unlike SpinMutex, at the cost of slightly higher uncontended
// overhead (two atomics instead of one).
type TicketMutex[T any, L LockAction] struct {
	nextTicket  atomic.Uint64
	nextServing atomic.Uint64
	data        T
}

// TicketMutexGuard provides access to the data protected by a
// TicketMutex. Release must be called exactly once.
type TicketMutexGuard[T any, L LockAction] struct {
	mu     *TicketMutex[T, L]
	ticket uint64
	valid  bool
}

// NewTicketMutex creates a TicketMutex wrapping the supplied value,
// unlocked.
func NewTicketMutex[T any, L LockAction](data T) *TicketMutex[T, L] {
	return &TicketMutex[T, L]{data: data}
}

// Lock acquires the mutex in FIFO order, spinning until this goroutine's
// ticket is served.
func (m *TicketMutex[T, L]) Lock() *TicketMutexGuard[T, L] {
	hooksOf[L]().BeforeLock()
	ticket := m.nextTicket.Add(1) - 1
	w := newSpinWaiter(DefaultSpinPolicy)
	for m.nextServing.Load() != ticket {
		w.wait()
	}
	return &TicketMutexGuard[T, L]{mu: m, ticket: ticket, valid: true}
}

// TryLock makes one attempt to acquire the mutex: it only succeeds if no
// other goroutine is waiting or holding it. On failure it returns (nil,
// false) and still invokes AfterLock.
func (m *TicketMutex[T, L]) TryLock() (*TicketMutexGuard[T, L], bool) {
	hooksOf[L]().BeforeLock()
	for {
		serving := m.nextServing.Load()
		ticket := m.nextTicket.Load()
		if serving != ticket {
			hooksOf[L]().AfterLock()
			return nil, false
		}
		if m.nextTicket.CompareAndSwap(ticket, ticket+1) {
			return &TicketMutexGuard[T, L]{mu: m, ticket: ticket, valid: true}, true
		}
	}
}

// IsLocked reports whether any goroutine currently holds the mutex. The
// result is advisory only.
func (m *TicketMutex[T, L]) IsLocked() bool {
	return m.nextTicket.Load() != m.nextServing.Load()
}

// GetMut returns a pointer to the protected data without taking the
// lock. Callers must have exclusive ownership of the TicketMutex for
// this to be sound.
func (m *TicketMutex[T, L]) GetMut() *T {
	return &m.data
}

// IntoInner consumes the mutex and returns the protected value.
func (m *TicketMutex[T, L]) IntoInner() T {
	return m.data
}

// ForceUnlock admits the next ticket without going through a guard. It
// is only valid when the calling goroutine holds the lock.
func (m *TicketMutex[T, L]) ForceUnlock() {
	if !m.IsLocked() {
		panicMisuse(misuseForceUnlockNotHeld)
	}
	m.nextServing.Add(1)
	hooksOf[L]().AfterLock()
}

// Deref returns a pointer to the protected value.
func (g *TicketMutexGuard[T, L]) Deref() *T {
	return &g.mu.data
}

// Get returns a copy of the protected value.
func (g *TicketMutexGuard[T, L]) Get() T {
	return g.mu.data
}

// Set replaces the protected value.
func (g *TicketMutexGuard[T, L]) Set(v T) {
	g.mu.data = v
}

// Release admits the next ticket in line. It must be called exactly
// once per guard.
func (g *TicketMutexGuard[T, L]) Release() {
	if !g.valid {
		panicMisuse(misuseWriteGuardReused)
	}
	g.valid = false
	g.mu.nextServing.Store(g.ticket + 1)
	hooksOf[L]().AfterLock()
}
