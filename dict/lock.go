/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package dict

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// Lock is the Atomic Lock Cell: a byte-wide test-and-set cell plus an
// owner-PID cell in the control block (spec.md §4.B), reentrant per calling
// process via a counter kept outside shared memory (spec.md §9).
//
// When shared is false, Lock instead delegates to an in-process reentrant
// mutex, so a single-process caller still gets the same API without paying
// for cross-process atomics it doesn't need.
type Lock struct {
	cb     *controlBlock
	shared bool
	pid    uint32

	// reentrancy counter, process-local, never stored in shared memory.
	depth atomic.Int32

	// local guards the process-local fallback path; ignored when shared.
	local sync.Mutex
}

func newLock(cb *controlBlock, shared bool) *Lock {
	return &Lock{cb: cb, shared: shared, pid: uint32(os.Getpid())}
}

// Acquire is reentrant per calling process. See spec.md §4.B for the exact
// fast/slow path contract.
func (l *Lock) Acquire() error {
	if !l.shared {
		if l.depth.Load() > 0 {
			// fast path: already held by this process's own call stack.
			l.depth.Add(1)
			return nil
		}
		l.local.Lock()
		l.depth.Add(1)
		return nil
	}

	if l.depth.Load() > 0 {
		// fast path: already held by this process.
		if l.cb.lockPID() != l.pid {
			return &Error{Kind: KindLockStolen, Msg: "lock_pid changed while locally held"}
		}
		l.depth.Add(1)
		return nil
	}

	for i := 0; i < Settings.SpinBudget; i++ {
		if l.cb.lockByteExchange(1) == 0 {
			l.cb.setLockPID(l.pid)
			l.depth.Add(1)
			return nil
		}
	}
	return &Error{Kind: KindCannotAcquireLock, Msg: fmt.Sprintf("spun %d times", Settings.SpinBudget)}
}

// Release decrements the reentrancy counter; at zero it clears lock_pid
// then atomically frees lock_byte.
func (l *Lock) Release() error {
	if !l.shared {
		if l.depth.Add(-1) > 0 {
			return nil
		}
		l.local.Unlock()
		return nil
	}

	if l.depth.Add(-1) > 0 {
		return nil
	}
	l.cb.setLockPID(0)
	if !l.cb.lockByteCAS(1, 0) {
		return errCorruption("release observed lock_byte != 1")
	}
	return nil
}

// Steal forcibly takes the lock when it is not locally held, e.g. because
// the prior holder crashed. expectedPID, if nonzero, must match the
// observed lock_pid or Steal fails.
func (l *Lock) Steal(expectedPID uint32) error {
	if l.depth.Load() > 0 {
		return fmt.Errorf("shmdict: cannot steal a lock held by this process")
	}
	if expectedPID != 0 && l.cb.lockPID() != expectedPID {
		return fmt.Errorf("shmdict: lock_pid mismatch, refusing to steal")
	}
	l.cb.setLockPID(0)
	if !l.cb.lockByteCAS(1, 0) {
		return fmt.Errorf("shmdict: steal lost the race")
	}
	return nil
}

// Reset unconditionally zeroes both lock fields. Destructive recovery only.
func (l *Lock) Reset() {
	l.cb.setLockPID(0)
	l.cb.lockByteExchange(0)
	l.depth.Store(0)
}

// PrepareFork must be called before forking a process that may hold this
// lock. It refuses to proceed if the lock is currently held locally,
// matching spec.md §5's "it is an error to fork while holding the lock".
func (l *Lock) PrepareFork() error {
	if l.depth.Load() > 0 {
		return fmt.Errorf("shmdict: refusing to fork while holding the lock")
	}
	return nil
}

// AfterForkInChild refreshes the cached PID after a successful fork. Call
// this in the child before any Acquire/Release.
func (l *Lock) AfterForkInChild() {
	l.pid = uint32(os.Getpid())
	l.depth.Store(0)
}
