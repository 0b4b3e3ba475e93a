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

	"github.com/launix-de/NonLockingReadMap"
)

// childHandle is one entry in the in-process cache of attached child
// dicts kept by a recurse-enabled parent. It satisfies
// NonLockingReadMap.KeyGetter[string] so the cache can be read lock-free by
// any number of goroutines in this process while only the (rare) attach of
// a new child writes to it — the same "read often, write seldom" shape
// storage/transaction.go exploits via NonLockingReadMap.NonBlockingBitMap
// for per-shard overlay visibility checks.
type childHandle struct {
	name string
	d    *Dict
}

func (c childHandle) GetKey() string { return c.name }

func (c childHandle) ComputeSize() uint {
	return uint(16 + len(c.name))
}

// registry tracks every nested child segment created under a recurse-mode
// parent (spec.md §3 "Nested registry", §4.G). The registry itself is a
// second, non-recursive Dict instance named "<parent>_register" whose keys
// are child segment names (values are unused); this struct additionally
// keeps a lock-free local cache of already-attached child *Dict handles so
// repeated lookups of the same nested map don't reattach it every time.
type registry struct {
	backing  *Dict
	children NonLockingReadMap.NonLockingReadMap[childHandle, string]
}

func newRegistry(backing *Dict) *registry {
	return &registry{backing: backing, children: NonLockingReadMap.New[childHandle, string]()}
}

// recordChild inserts name into the backing registry map and the local
// cache of attached handles.
func (r *registry) recordChild(name string, d *Dict) error {
	if err := r.backing.Set([]byte(name), true); err != nil {
		return err
	}
	r.children.Set(&childHandle{name: name, d: d})
	return nil
}

// attachedChild returns the cached handle for name, if any goroutine in
// this process has already attached it.
func (r *registry) attachedChild(name string) (*Dict, bool) {
	h := r.children.Get(name)
	if h == nil {
		return nil, false
	}
	return h.d, true
}

// getOrAttach returns the cached handle for name, attaching it fresh (and
// caching the result) if no goroutine in this process has resolved it yet.
// Unlike recordChild, this never writes to the backing registry map — it is
// the read path used by a peer resolving a child it did not itself create
// (spec.md §4.G: "reading from an attached peer" must reach the same nested
// map without having been the one to call Set on it).
func (r *registry) getOrAttach(name string, parentOpts Options) (*Dict, error) {
	if h, ok := r.attachedChild(name); ok {
		return h, nil
	}
	child, err := New(Options{
		Name:       name,
		Serializer: parentOpts.Serializer,
		SharedLock: parentOpts.SharedLock,
		Recurse:    true,
		AutoUnlink: boolPtr(false),
	})
	if err != nil {
		return nil, err
	}
	r.children.Set(&childHandle{name: name, d: child})
	return child, nil
}

// names returns every child segment name currently recorded, for teardown.
func (r *registry) names() ([]string, error) {
	keys, err := r.backing.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		s, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("shmdict: registry key %v is not a string", k)
		}
		out[i] = s
	}
	return out, nil
}

// teardown unlinks every recorded child's control and stream segments, then
// the registry itself (spec.md §4.G teardown).
func (r *registry) teardown() error {
	names, err := r.names()
	if err != nil {
		return err
	}
	for _, name := range names {
		if h := r.children.Get(name); h != nil && h.d != nil {
			h.d.Close()
		}
		UnlinkSegment(name, true)
		UnlinkSegment(name+"_memory", true)
	}
	return r.backing.Unlink()
}
