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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockSharedAcquireReleaseIsReentrant(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)
	l := newLock(cb, true)

	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	require.Equal(t, uint16(1), cb.lockByteLoad())

	require.NoError(t, l.Release())
	require.Equal(t, uint16(1), cb.lockByteLoad())
	require.NoError(t, l.Release())
	require.Equal(t, uint16(0), cb.lockByteLoad())
}

func TestLockSharedDetectsStolenLock(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)
	l := newLock(cb, true)
	require.NoError(t, l.Acquire())

	cb.setLockPID(cb.lockPID() + 1)
	err := l.Acquire()
	require.Error(t, err)
	require.True(t, IsKind(err, KindLockStolen))
}

func TestLockLocalFallbackIsMutuallyExclusive(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, false, false)
	l := newLock(cb, false)

	require.NoError(t, l.Acquire())
	done := make(chan struct{})
	go func() {
		require.NoError(t, l.Acquire())
		close(done)
		l.Release()
	}()

	select {
	case <-done:
		t.Fatal("second acquire should have blocked until release")
	default:
	}
	require.NoError(t, l.Release())
	<-done
}

// TestLockLocalFallbackIsReentrant guards against the non-shared path
// re-locking its own process-local mutex on a nested Acquire, which would
// deadlock the calling goroutine (reachable via Set/Delete retrying through
// applyUpdateLocked while already holding the lock).
func TestLockLocalFallbackIsReentrant(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, false, false)
	l := newLock(cb, false)

	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

func TestLockPrepareForkRefusesWhileHeld(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)
	l := newLock(cb, true)

	require.NoError(t, l.PrepareFork())
	require.NoError(t, l.Acquire())
	require.Error(t, l.PrepareFork())
	require.NoError(t, l.Release())
}

func TestLockStealRequiresMatchingPID(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)
	l := newLock(cb, true)
	require.NoError(t, l.Acquire())

	l2 := newLock(cb, true)
	err := l2.Steal(cb.lockPID() + 1)
	require.Error(t, err)

	err = l2.Steal(cb.lockPID())
	require.NoError(t, err)
	require.Equal(t, uint16(0), cb.lockByteLoad())
}
