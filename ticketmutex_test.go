package ksync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketMutexBasicLockUnlock(t *testing.T) {
	m := NewTicketMutex[int, NoopLockAction](0)
	g := m.Lock()
	g.Set(42)
	g.Release()

	g = m.Lock()
	defer g.Release()
	assert.Equal(t, 42, g.Get())
}

func TestTicketMutexConcurrentAccess(t *testing.T) {
	const goroutines = 100
	const iterations = 500

	m := NewTicketMutex[int, NoopLockAction](0)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				g := m.Lock()
				g.Set(g.Get() + 1)
				g.Release()
			}
		}()
	}
	wg.Wait()

	g := m.Lock()
	defer g.Release()
	assert.Equal(t, goroutines*iterations, g.Get())
}

// TestTicketMutexFairness starts many goroutines behind a single barrier
// and records the ticket each one was served. Since nextServing only
// ever increments by one, the sequence observed in arrival order must
// be strictly increasing - any gap or repeat means a ticket was served
// out of order.
func TestTicketMutexFairness(t *testing.T) {
	const goroutines = 50

	m := NewTicketMutex[int, NoopLockAction](0)
	served := make([]uint64, 0, goroutines)
	var mu sync.Mutex
	var ready, wg sync.WaitGroup
	ready.Add(1)
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			ready.Wait()
			g := m.Lock()
			mu.Lock()
			served = append(served, m.nextServing.Load())
			mu.Unlock()
			g.Release()
		}()
	}

	ready.Done()
	wg.Wait()

	for i := 1; i < len(served); i++ {
		assert.Equal(t, served[i-1]+1, served[i], "tickets must be served strictly in arrival order")
	}
}

func TestTicketMutexTryLockFailsFastWhenQueued(t *testing.T) {
	m := NewTicketMutex[int, NoopLockAction](0)
	held := m.Lock()

	_, ok := m.TryLock()
	assert.False(t, ok, "TryLock must fail while a ticket is already being served")

	held.Release()

	g, ok := m.TryLock()
	assert.True(t, ok)
	g.Release()
}

func TestTicketMutexIsLocked(t *testing.T) {
	m := NewTicketMutex[int, NoopLockAction](0)
	assert.False(t, m.IsLocked())
	g := m.Lock()
	assert.True(t, m.IsLocked())
	g.Release()
	assert.False(t, m.IsLocked())
}

func TestTicketMutexForceUnlockMisuse(t *testing.T) {
	m := NewTicketMutex[int, NoopLockAction](0)
	assert.Panics(t, func() {
		m.ForceUnlock()
	})
}

func BenchmarkTicketMutexUncontended(b *testing.B) {
	m := NewTicketMutex[int, NoopLockAction](0)
	for i := 0; i < b.N; i++ {
		g := m.Lock()
		g.Release()
	}
}

func BenchmarkTicketMutexUncontendedParallel(b *testing.B) {
	m := NewTicketMutex[int, NoopLockAction](0)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := m.Lock()
			g.Release()
		}
	})
}

func BenchmarkTicketMutexContended(b *testing.B) {
	m := NewTicketMutex[int, NoopLockAction](0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := m.Lock()
			g.Set(g.Get() + 1)
			g.Release()
		}
	})
}

func BenchmarkTicketMutexHeavyContention(b *testing.B) {
	m := NewTicketMutex[int, NoopLockAction](0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g := m.Lock()
			for i := 0; i < 100; i++ {
				g.Set(g.Get() + 1)
			}
			g.Release()
		}
	})
}

func BenchmarkTicketMutexTryLock(b *testing.B) {
	m := NewTicketMutex[int, NoopLockAction](0)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if g, ok := m.TryLock(); ok {
				g.Set(g.Get() + 1)
				g.Release()
			}
		}
	})
}
