// Package seqcheck implements a runtime guard for objects that must only be
// used from one logical sequence at a time. It does not synchronize: exclusive
// access is the caller's responsibility, and a violation is a caller bug, so
// the guard faults loudly instead of blocking.
package seqcheck

import "sync/atomic"

// Checker detects overlapping calls on a single-sequence object. The zero
// value is ready for use.
type Checker struct {
	busy uint32
}

// Enter marks the start of an operation and returns the function that marks
// its end. It panics if another operation is still in flight.
//
//	defer c.Enter()()
func (c *Checker) Enter() (exit func()) {
	if !atomic.CompareAndSwapUint32(&c.busy, 0, 1) {
		panic("seqcheck: concurrent use of a single-sequence object")
	}

	return func() { atomic.StoreUint32(&c.busy, 0) }
}
