// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package ksync implements a small set of kernel-oriented synchronization
// primitives: a test-and-set spin mutex, a FIFO ticket mutex, a
// reader-writer lock with an upgradable-read mode, and an RCU-style lock
// that lets readers observe a stable snapshot while a single writer
// publishes a new one.
//
// Every primitive is parameterized by a LockAction policy, invoked
// symmetrically around every acquisition and release (including failed
// TryLock paths). The default policy, NoopLockAction, does nothing; a
// kernel can supply its own to disable interrupts around critical
// sections (see the kernelpolicy subpackage for an illustrative one).
//
// None of these primitives ever block a goroutine on a channel or a
// condition variable: every wait is a spin loop. That makes them
// appropriate for code that cannot park (interrupt handlers, code that
// runs before a scheduler exists) but a poor substitute for sync.Mutex
// in ordinary Go code, which should keep using sync.Mutex.
package ksync

// LockAction is a policy invoked around every critical section of every
// lock in this package. It carries no state of its own; the zero value
// of an implementing type is what gets used, since L is supplied as a
// generic type parameter rather than a value.
//
// Implementations must be safe to use via a value received on multiple
// goroutines concurrently; in practice this means an implementation
// should keep its real state (if any) in package-level or per-goroutine
// storage, not in the receiver, since the receiver is always a
// zero-sized value produced on demand.
type LockAction interface {
	// BeforeLock is called before a lock attempts to acquire, including
	// before a TryLock attempt that may fail.
	BeforeLock()
	// AfterLock is called after a lock releases, and after a failed
	// TryLock/TryRead/TryWrite attempt.
	AfterLock()
}

// NoopLockAction is the default LockAction: both hooks do nothing. Used
// when a caller has no interrupt-masking or scheduler-hook requirement.
type NoopLockAction struct{}

// BeforeLock does nothing.
func (NoopLockAction) BeforeLock() {}

// AfterLock does nothing.
func (NoopLockAction) AfterLock() {}

// hooksOf returns zero-cost before/after hooks for the given LockAction
// type parameter. Because L is a type parameter constrained to
// LockAction, the compiler specializes this per instantiation; there is
// no dynamic dispatch at the call sites that use it.
func hooksOf[L LockAction]() L {
	var action L
	return action
}
