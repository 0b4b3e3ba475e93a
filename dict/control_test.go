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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestControlBlock(t *testing.T) *controlBlock {
	t.Helper()
	name := fmt.Sprintf("shmdict_test_%s", uuid.NewString())
	seg, err := CreateSegment(name, controlBlockSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		seg.Close()
		UnlinkSegment(name, true)
	})
	return newControlBlock(seg)
}

func TestControlBlockInitZeroesState(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)

	require.Equal(t, uint32(0), cb.streamEnd())
	require.Equal(t, uint32(0), cb.dumpCounter())
	require.Equal(t, uint32(0), cb.dumpStaticSize())
	require.True(t, cb.sharedLockFlag())
	require.False(t, cb.recurseFlag())
	require.Equal(t, "", cb.dumpName())
}

func TestControlBlockStreamEndRoundtrip(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, false, false)

	cb.setStreamEnd(1234)
	require.Equal(t, uint32(1234), cb.streamEnd())
}

func TestControlBlockDumpNameRoundtrip(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, false, false)

	cb.setDumpName("shmdict_dump_abc")
	require.Equal(t, "shmdict_dump_abc", cb.dumpName())

	cb.setDumpName("short")
	require.Equal(t, "short", cb.dumpName())
}

func TestControlBlockDumpNamePanicsWhenTooLong(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, false, false)

	longName := make([]byte, maxNameLen+1)
	for i := range longName {
		longName[i] = 'x'
	}
	require.Panics(t, func() { cb.setDumpName(string(longName)) })
}

func TestControlBlockLockByteCAS(t *testing.T) {
	cb := newTestControlBlock(t)
	cb.init(10_000, 0, true, false)

	require.Equal(t, uint16(0), cb.lockByteExchange(1))
	require.True(t, cb.lockByteCAS(1, 0))
	require.Equal(t, uint16(0), cb.lockByteLoad())
}
