// Package kernelpolicy is an illustrative collaborator for ksync's
// LockAction hook: a kernel target that must disable interrupts for the
// duration of a held lock, and re-enable them only once every nested
// lock has released. It is not part of the library's public contract -
// a real kernel embeds its own InterruptController implementation - but
// it gives the generic LockAction parameter a concrete, testable shape.
package kernelpolicy

import "log"

// InterruptController is the per-CPU interrupt mask a real kernel target
// supplies. There is no such thing to call from user-space Go; this
// interface exists so a kernel build can plug one in, and so tests can
// supply a fake.
type InterruptController interface {
	// InterruptsEnabled reports whether interrupts are currently
	// enabled on the calling CPU.
	InterruptsEnabled() bool
	// SetInterrupts enables or disables interrupts on the calling CPU
	// and returns the previous state.
	SetInterrupts(enabled bool) (previous bool)
}

// nestingState tracks the push_off/pop_off discipline for a single CPU:
// a count of how many locks are currently held with interrupts pushed
// off, and the interrupt-enabled state observed by the first push.
type nestingState struct {
	controller InterruptController
	depth      int
	wasEnabled bool
}

// PushOff disables interrupts, recording the previous state only on the
// outermost call so a matching PopOff restores it. Nested calls just
// bump the depth counter. This is the standard xv6-style discipline: a
// lock taken while already holding one inherits the outer call's
// recorded state rather than clobbering it.
func (s *nestingState) PushOff() {
	enabled := s.controller.InterruptsEnabled()
	s.controller.SetInterrupts(false)
	if s.depth == 0 {
		s.wasEnabled = enabled
	}
	s.depth++
}

// PopOff decrements the nesting depth and, only once it reaches zero,
// restores whatever interrupt state PushOff observed on the outermost
// call. Calling PopOff more times than PushOff is a misuse: it is
// logged and ignored rather than panicking, since an interrupt
// controller miscount should not be fatal to the holder of a data lock.
func (s *nestingState) PopOff() {
	if s.depth == 0 {
		log.Printf("kernelpolicy: PopOff called with no matching PushOff")
		return
	}
	s.depth--
	if s.depth == 0 && s.wasEnabled {
		s.controller.SetInterrupts(true)
	}
}

// IRQLockAction is a ksync.LockAction that pushes interrupts off for the
// duration of every critical section and pops them back on release,
// nesting safely across locks taken while already holding one.
//
// L is instantiated as a type parameter by ksync's lock types (e.g.
// SpinMutex[T, IRQLockAction]), so every instance shares the same
// process-wide nesting state - matching the per-CPU semantics a real
// kernel's interrupt controller would provide, simplified to a single
// counter since this package has no notion of "current CPU" in
// user-space Go.
type IRQLockAction struct{}

var globalNesting = &nestingState{controller: noopController{}}

// SetController installs the InterruptController a real kernel target
// supplies. Tests substitute a fake to observe push/pop behavior without
// a real interrupt mask to flip.
func SetController(c InterruptController) {
	globalNesting.controller = c
}

func (IRQLockAction) BeforeLock() {
	globalNesting.PushOff()
}

func (IRQLockAction) AfterLock() {
	globalNesting.PopOff()
}

// noopController is installed by default so that IRQLockAction is safe
// to use before SetController is called - every lock still gets its
// BeforeLock/AfterLock nesting counted, it just never actually masks
// anything.
type noopController struct{}

func (noopController) InterruptsEnabled() bool        { return true }
func (noopController) SetInterrupts(bool) (prev bool) { return true }
