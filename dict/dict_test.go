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
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func freshName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("shmdict_test_%s", uuid.NewString())
}

func newTestDict(t *testing.T, opts Options) *Dict {
	t.Helper()
	d, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { d.Unlink() })
	return d
}

func TestSetGetDeleteBasic(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name})

	ok, err := d.Contains([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, d.Set([]byte("greeting"), "hello"))
	v, ok, err := d.Get([]byte("greeting"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", v)

	require.NoError(t, d.Delete([]byte("greeting")))
	_, ok, err = d.Get([]byte("greeting"))
	require.NoError(t, err)
	require.False(t, ok)
}

// TestTwoHandlesCounting: a second, independent handle to the same named
// map sees the last of the first handle's 50 writes after syncing.
func TestTwoHandlesCounting(t *testing.T) {
	name := freshName(t)
	a := newTestDict(t, Options{Name: name})

	b, err := New(Options{Name: name, AutoUnlink: boolPtr(false)})
	require.NoError(t, err)
	defer b.Close()

	for i := int64(0); i < 50; i++ {
		require.NoError(t, a.Set([]byte("counter"), i))
	}

	v, ok, err := b.Get([]byte("counter"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(49), v)
}

func TestHugeValueForcesFullDump(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name, BufferSize: 256})

	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, d.Set([]byte("big"), big))

	v, ok, err := d.Get([]byte("big"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big, v)
	require.Greater(t, d.cb.dumpCounter(), uint32(0))
}

// TestAutoUnlinkDefaultsToActualCreatorStatus guards against conflating
// "name was system-assigned" with "this handle created the segment": the
// first process to touch an explicit name is still the creator and should
// still default to auto-unlinking (spec.md §6).
func TestAutoUnlinkDefaultsToActualCreatorStatus(t *testing.T) {
	name := freshName(t)
	creator, err := New(Options{Name: name})
	require.NoError(t, err)
	require.True(t, creator.opts.autoUnlink())

	attacher, err := New(Options{Name: name})
	require.NoError(t, err)
	require.False(t, attacher.opts.autoUnlink())
	require.NoError(t, attacher.Close())

	require.NoError(t, creator.Close())
}

func TestParameterMismatchOnAttach(t *testing.T) {
	name := freshName(t)
	_ = newTestDict(t, Options{Name: name, SharedLock: true})

	_, err := New(Options{Name: name, SharedLock: false, AutoUnlink: boolPtr(false)})
	require.Error(t, err)
	require.True(t, IsKind(err, KindParameterMismatch))
}

func TestItemsSnapshotIsStableAtCallTime(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name})

	require.NoError(t, d.Set([]byte("a"), int64(1)))
	require.NoError(t, d.Set([]byte("b"), int64(2)))

	items, err := d.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, d.Set([]byte("c"), int64(3)))
	require.Len(t, items, 2)
}

func TestRecurseNestedMap(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name, Recurse: true})

	require.NoError(t, d.Set([]byte("address"), map[string]any{
		"city": "Munich",
		"zip":  int64(80331),
	}))

	v, ok, err := d.Get([]byte("address"))
	require.NoError(t, err)
	require.True(t, ok)
	nested, ok := v.(map[any]any)
	require.True(t, ok)
	require.Equal(t, "Munich", nested["city"])
	require.Equal(t, int64(80331), nested["zip"])
}

// TestRecurseNestedMapResolvesFromPeer mirrors spec.md §8 scenario 5:
// reading a nested map from an attached peer that did not itself create
// the child must still yield the fully resolved value, not an opaque
// reference (DESIGN.md's resolution of the recurse open question).
func TestRecurseNestedMapResolvesFromPeer(t *testing.T) {
	name := freshName(t)
	writer := newTestDict(t, Options{Name: name, Recurse: true})

	require.NoError(t, writer.Set([]byte("nested"), map[string]any{
		"deeper": map[string]any{
			"answer": int64(2),
		},
	}))

	reader, err := New(Options{Name: name, Recurse: true, AutoUnlink: boolPtr(false)})
	require.NoError(t, err)
	defer reader.Close()

	v, ok, err := reader.Get([]byte("nested"))
	require.NoError(t, err)
	require.True(t, ok)
	top, ok := v.(map[any]any)
	require.True(t, ok)

	deeper, ok := top["deeper"].(map[any]any)
	require.True(t, ok)
	require.Equal(t, int64(2), deeper["answer"])
}

func TestConcurrentSetsPreserveCount(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name, SharedLock: false})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, d.Set([]byte(fmt.Sprintf("k%d", i)), int64(i)))
		}(i)
	}
	wg.Wait()

	n, err := d.Len()
	require.NoError(t, err)
	require.Equal(t, 20, n)
}

func TestCloseIsIdempotent(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name, AutoUnlink: boolPtr(false)})
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestOperationsFailAfterClose(t *testing.T) {
	name := freshName(t)
	d, err := New(Options{Name: name})
	require.NoError(t, err)
	require.NoError(t, d.Unlink())

	_, _, err = d.Get([]byte("x"))
	require.True(t, IsKind(err, KindAlreadyClosed))
}

func TestSubscribeReceivesSetAndDelete(t *testing.T) {
	name := freshName(t)
	d := newTestDict(t, Options{Name: name})

	var mu sync.Mutex
	var seen []byte
	unsub := d.Subscribe(func(op byte, key []byte, seq uint64) {
		mu.Lock()
		seen = append(seen, op)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, d.Set([]byte("k"), int64(1)))
	require.NoError(t, d.Delete([]byte("k")))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []byte{byte(opSet), byte(opDelete)}, seen)
}
