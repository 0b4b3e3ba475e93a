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

func TestLocalReplicaSetGetDelete(t *testing.T) {
	r := newLocalReplica()
	_, ok := r.get([]byte("k"))
	require.False(t, ok)

	r.set([]byte("k"), []byte("v"))
	v, ok := r.get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
	require.Equal(t, 1, r.len())

	r.delete([]byte("k"))
	_, ok = r.get([]byte("k"))
	require.False(t, ok)
	require.Equal(t, 0, r.len())
}

func TestLocalReplicaSnapshotIsIndependentCopy(t *testing.T) {
	r := newLocalReplica()
	r.set([]byte("a"), []byte("1"))
	snap := r.snapshot()
	r.set([]byte("b"), []byte("2"))

	require.Len(t, snap, 1)
	require.Equal(t, 2, r.len())
}

func TestLocalReplicaApplyRecord(t *testing.T) {
	r := newLocalReplica()
	r.apply(record{op: opSet, key: []byte("x"), value: []byte("y")})
	v, ok := r.get([]byte("x"))
	require.True(t, ok)
	require.Equal(t, []byte("y"), v)

	r.apply(record{op: opDelete, key: []byte("x")})
	_, ok = r.get([]byte("x"))
	require.False(t, ok)
}

func TestLocalReplicaReplaceAll(t *testing.T) {
	r := newLocalReplica()
	r.set([]byte("stale"), []byte("1"))
	r.replaceAll(map[string][]byte{"fresh": []byte("2")})

	_, ok := r.get([]byte("stale"))
	require.False(t, ok)
	v, ok := r.get([]byte("fresh"))
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}
