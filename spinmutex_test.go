package ksync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinMutexBasicLockUnlock(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](0)
	g := m.Lock()
	g.Set(42)
	g.Release()

	g = m.Lock()
	defer g.Release()
	assert.Equal(t, 42, g.Get())
}

func TestSpinMutexTryLockContention(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](0)
	held := m.Lock()

	_, ok := m.TryLock()
	assert.False(t, ok, "TryLock must fail while another goroutine holds the lock")

	held.Release()

	g, ok := m.TryLock()
	assert.True(t, ok)
	g.Release()
}

func TestSpinMutexIsLocked(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](0)
	assert.False(t, m.IsLocked())

	g := m.Lock()
	assert.True(t, m.IsLocked())
	g.Release()
	assert.False(t, m.IsLocked())
}

func TestSpinMutexForceUnlockMisuse(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](0)
	assert.Panics(t, func() {
		m.ForceUnlock()
	}, "ForceUnlock on an unlocked SpinMutex must panic")
}

func TestSpinMutexReleaseTwiceMisuse(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](0)
	g := m.Lock()
	g.Release()
	assert.Panics(t, func() {
		g.Release()
	}, "releasing a guard twice must panic")
}

// TestSpinMutexMutualExclusion races many goroutines incrementing a
// shared counter through the lock; if mutual exclusion ever slips, the
// final count will be short of n*iterations.
func TestSpinMutexMutualExclusion(t *testing.T) {
	const goroutines = 20
	const iterations = 2000

	m := NewSpinMutex[int, NoopLockAction](0)
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

func TestSpinMutexGetMut(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](5)
	*m.GetMut() = 9
	g := m.Lock()
	defer g.Release()
	assert.Equal(t, 9, g.Get())
}

func TestSpinMutexIntoInner(t *testing.T) {
	m := NewSpinMutex[int, NoopLockAction](7)
	assert.Equal(t, 7, m.IntoInner())
}
