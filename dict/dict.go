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
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Observer receives one notification per applied or appended stream record.
// op is opSet (1) or opDelete (0). Used by package dict/monitor; the core
// never imports it back.
type Observer func(op byte, key []byte, seq uint64)

// Dict is the public, explicit method surface over a shared map (spec.md
// §9's redesign of the operator-overloaded source API): Get, Set, Delete,
// Contains, Len, Keys, Values, Items, Child, Equal, String, Stats,
// ApplyUpdate, Close, Unlink — a handle that owns its own resources,
// nothing more.
type Dict struct {
	name string
	opts Options

	controlSeg *Segment
	streamSeg  *Segment
	dumpSeg    *Segment // currently attached dump, nil until first load/produce

	cb      *controlBlock
	lock    *Lock
	replica *localReplica

	dumpLoadGroup singleflight.Group

	registryMu sync.Mutex
	reg        *registry // non-nil only for recurse-mode parents

	seqCounter atomic.Uint64
	obsMu      sync.RWMutex
	observers  []Observer

	closed atomic.Bool
}

// New creates or attaches a Dict according to opts (spec.md §6). An empty
// opts.Name always creates a fresh, system-assigned segment.
func New(opts Options) (*Dict, error) {
	if opts.Name == "" {
		opts.Name = "shmdict_" + uuid.NewString()
	}
	opts = opts.withDefaults()

	controlSeg, err := OpenOrCreateSegment(opts.Name, controlBlockSize)
	if err != nil {
		return nil, err
	}

	// auto_unlink defaults to "this handle created the segment" (spec.md
	// §6), which is only known once OpenOrCreateSegment has run.
	if opts.AutoUnlink == nil {
		v := controlSeg.IsCreator()
		opts.AutoUnlink = &v
	}

	d := &Dict{
		name:    opts.Name,
		opts:    opts,
		replica: newLocalReplica(),
	}
	d.controlSeg = controlSeg
	d.cb = newControlBlock(controlSeg)

	if controlSeg.IsCreator() {
		if err := d.initAsCreator(); err != nil {
			controlSeg.Close()
			UnlinkSegment(opts.Name, true)
			return nil, err
		}
	} else {
		if err := d.attachToExisting(); err != nil {
			controlSeg.Close()
			return nil, err
		}
	}

	d.lock = newLock(d.cb, d.cb.sharedLockFlag())

	if d.opts.Recurse {
		if backing := mustOpenRegistry(d); backing != nil {
			d.reg = newRegistry(backing)
		}
	}

	if controlSeg.IsCreator() && opts.autoUnlink() {
		registerAutoUnlink(func() { d.Unlink() })
	}

	if err := d.ApplyUpdate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dict) initAsCreator() error {
	d.cb.init(d.opts.BufferSize, d.opts.FullDumpSize, d.opts.SharedLock, d.opts.Recurse)

	streamSeg, err := CreateSegment(d.name+"_memory", d.opts.BufferSize)
	if err != nil {
		return err
	}
	d.streamSeg = streamSeg

	if d.opts.FullDumpSize > 0 {
		dumpSeg, err := CreateSegment(d.name+"_full", d.opts.FullDumpSize)
		if err != nil {
			streamSeg.Close()
			return err
		}
		d.dumpSeg = dumpSeg
	}
	return nil
}

func (d *Dict) attachToExisting() error {
	if d.cb.sharedLockFlag() != d.opts.SharedLock {
		return errParameterMismatch("shared_lock", d.cb.sharedLockFlag(), d.opts.SharedLock)
	}
	if d.cb.recurseFlag() != d.opts.Recurse {
		return errParameterMismatch("recurse", d.cb.recurseFlag(), d.opts.Recurse)
	}

	streamSeg, err := AttachSegment(d.name + "_memory")
	if err != nil {
		return err
	}
	d.streamSeg = streamSeg
	d.opts.BufferSize = uint32(streamSeg.Len())

	if d.cb.dumpStaticSize() > 0 {
		if seg, err := AttachSegment(d.name + "_full"); err == nil {
			d.dumpSeg = seg
		}
		// absent is fine: no dump has been produced yet.
	}
	return nil
}

func mustOpenRegistry(d *Dict) *Dict {
	name := d.opts.RecurseRegister
	if name == "" {
		name = d.name + "_register"
	}
	reg, err := New(Options{
		Name:       name,
		Serializer: d.opts.Serializer,
		SharedLock: d.opts.SharedLock,
		AutoUnlink: boolPtr(false),
	})
	if err != nil {
		// the registry is best-effort bookkeeping; a failure here must not
		// block the parent from being usable, but recurse mode then has
		// nothing to clean up on teardown.
		d.opts.Logger.Printf("shmdict: could not open registry %q: %v", name, err)
		return nil
	}
	return reg
}

func boolPtr(b bool) *bool { return &b }

func (d *Dict) isClosed() bool { return d.closed.Load() }

func (d *Dict) notifyObservers(rec record) {
	seq := d.seqCounter.Add(1)
	d.obsMu.RLock()
	obs := d.observers
	d.obsMu.RUnlock()
	for _, o := range obs {
		if o != nil {
			o(byte(rec.op), rec.key, seq)
		}
	}
}

// Subscribe registers an Observer invoked once per applied/appended record.
// Used by dict/monitor; returns an unsubscribe function.
func (d *Dict) Subscribe(o Observer) (unsubscribe func()) {
	d.obsMu.Lock()
	d.observers = append(d.observers, o)
	idx := len(d.observers) - 1
	d.obsMu.Unlock()
	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		if idx < len(d.observers) {
			d.observers[idx] = nil
		}
	}
}

// Name returns the control segment's name.
func (d *Dict) Name() string { return d.name }

// Get returns the value for key, syncing first. A nested map written under
// recurse mode is transparently attached and resolved (spec.md §4.G): the
// caller never sees the internal childRef.
func (d *Dict) Get(key []byte) (any, bool, error) {
	if d.isClosed() {
		return nil, false, errAlreadyClosed()
	}
	if err := d.ApplyUpdate(); err != nil {
		return nil, false, err
	}
	raw, ok := d.replica.get(key)
	if !ok {
		return nil, false, nil
	}
	v, err := d.opts.Serializer.Decode(raw)
	if err != nil {
		return nil, false, err
	}
	resolved, err := d.resolveValue(v)
	if err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}

// Child attaches (or returns the already-attached handle for) a nested map
// previously recorded by a recurse-mode Set, from this process or a peer —
// spec.md §4.G's registry exists precisely so a different-process reader
// can resolve a child it did not itself create.
func (d *Dict) Child(name string) (*Dict, error) {
	if d.reg == nil {
		return nil, fmt.Errorf("shmdict: recurse mode not enabled on %q", d.name)
	}
	d.registryMu.Lock()
	defer d.registryMu.Unlock()
	return d.reg.getOrAttach(name, d.opts)
}

// resolveValue replaces a decoded childRef with the nested map it refers
// to, read recursively. Any other value is returned unchanged.
func (d *Dict) resolveValue(v any) (any, error) {
	ref, ok := v.(childRef)
	if !ok {
		return v, nil
	}
	child, err := d.Child(ref.Name)
	if err != nil {
		return nil, err
	}
	return child.Items()
}

// Contains reports whether key is present, after syncing.
func (d *Dict) Contains(key []byte) (bool, error) {
	_, ok, err := d.Get(key)
	return ok, err
}

// Set writes key=value. If value is a map[string]any and recurse mode is
// enabled, it is transparently wrapped as a nested child Dict (spec.md
// §4.G).
func (d *Dict) Set(key []byte, value any) error {
	if d.isClosed() {
		return errAlreadyClosed()
	}
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer d.lock.Release()

	if err := d.applyUpdateLocked(false); err != nil {
		return err
	}

	if d.opts.Recurse {
		if nested, ok := value.(map[string]any); ok {
			ref, err := d.wrapNested(string(key), nested)
			if err != nil {
				return err
			}
			value = ref
		}
	}

	encoded, err := d.opts.Serializer.Encode(value)
	if err != nil {
		return err
	}
	d.replica.set(key, encoded)
	return d.appendUpdate(record{op: opSet, key: key, value: encoded})
}

func (d *Dict) wrapNested(name string, value map[string]any) (childRef, error) {
	d.registryMu.Lock()
	defer d.registryMu.Unlock()
	if d.reg == nil {
		return childRef{}, fmt.Errorf("shmdict: recurse mode has no registry")
	}
	childName := d.name + "_" + name + "_" + nextEventTag()
	child, err := New(Options{
		Name:       childName,
		BufferSize: d.opts.BufferSize,
		Serializer: d.opts.Serializer,
		SharedLock: d.opts.SharedLock,
		Recurse:    true,
		AutoUnlink: boolPtr(false),
	})
	if err != nil {
		return childRef{}, err
	}
	for k, v := range value {
		if err := child.Set([]byte(k), v); err != nil {
			return childRef{}, err
		}
	}
	if err := d.reg.recordChild(childName, child); err != nil {
		return childRef{}, err
	}
	return childRef{Name: childName}, nil
}

// Delete removes key.
func (d *Dict) Delete(key []byte) error {
	if d.isClosed() {
		return errAlreadyClosed()
	}
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer d.lock.Release()

	if err := d.applyUpdateLocked(false); err != nil {
		return err
	}
	d.replica.delete(key)
	return d.appendUpdate(record{op: opDelete, key: key})
}

// Len returns the number of entries, after syncing.
func (d *Dict) Len() (int, error) {
	if d.isClosed() {
		return 0, errAlreadyClosed()
	}
	if err := d.ApplyUpdate(); err != nil {
		return 0, err
	}
	return d.replica.len(), nil
}

// Keys returns a snapshot of keys, each as the string of its raw key bytes
// (spec.md §4.F iteration contract).
func (d *Dict) Keys() ([]any, error) {
	items, err := d.Items()
	if err != nil {
		return nil, err
	}
	keys := make([]any, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys, nil
}

// Values returns a decoded snapshot of values.
func (d *Dict) Values() ([]any, error) {
	items, err := d.Items()
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(items))
	for _, v := range items {
		values = append(values, v)
	}
	return values, nil
}

// Items returns a snapshot map, taken after ApplyUpdate (spec.md §4.F:
// further changes may not appear in this snapshot). Keys are the strings of
// the raw key bytes, as Set stores them; values are decoded.
func (d *Dict) Items() (map[any]any, error) {
	if d.isClosed() {
		return nil, errAlreadyClosed()
	}
	if err := d.ApplyUpdate(); err != nil {
		return nil, err
	}
	raw := d.replica.snapshot()
	out := make(map[any]any, len(raw))
	for k, v := range raw {
		dv, err := d.opts.Serializer.Decode(v)
		if err != nil {
			return nil, err
		}
		resolved, err := d.resolveValue(dv)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

// Equal compares two Dicts' post-sync replicas for value equality.
func (d *Dict) Equal(other *Dict) (bool, error) {
	a, err := d.Items()
	if err != nil {
		return false, err
	}
	b, err := other.Items()
	if err != nil {
		return false, err
	}
	if len(a) != len(b) {
		return false, nil
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || fmt.Sprint(bv) != fmt.Sprint(v) {
			return false, nil
		}
	}
	return true, nil
}

// String renders basic stats for debugging, without requiring a sync.
func (d *Dict) String() string {
	return fmt.Sprintf("Dict{name=%s, entries=%d, stream_end=%d, dump_counter=%d}",
		d.name, d.replica.len(), d.cb.streamEnd(), d.cb.dumpCounter())
}

// Stats is a point-in-time snapshot of control-block counters plus entry
// count, exposed for diagnostics (SPEC_FULL.md §4.J).
type Stats struct {
	StreamEnd   uint32 `json:"stream_end"`
	BufferSize  uint32 `json:"buffer_size"`
	DumpCounter uint32 `json:"dump_counter"`
	Entries     int    `json:"entries"`
}

// Stats returns a Stats snapshot, syncing first.
func (d *Dict) Stats() (Stats, error) {
	if d.isClosed() {
		return Stats{}, errAlreadyClosed()
	}
	if err := d.ApplyUpdate(); err != nil {
		return Stats{}, err
	}
	return Stats{
		StreamEnd:   d.cb.streamEnd(),
		BufferSize:  d.opts.BufferSize,
		DumpCounter: d.cb.dumpCounter(),
		Entries:     d.replica.len(),
	}, nil
}

// Close releases this handle's local resources. Idempotent; per spec.md
// §7, does not unlink the segments unless AutoUnlink selects that.
func (d *Dict) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d.opts.autoUnlink() && d.controlSeg.IsCreator() {
		d.Unlink()
		return nil
	}
	d.closeHandles()
	return nil
}

func (d *Dict) closeHandles() {
	if d.streamSeg != nil {
		d.streamSeg.Close()
	}
	if d.dumpSeg != nil {
		d.dumpSeg.Close()
	}
	d.controlSeg.Close()
}

// Unlink tears the map down: closes local handles, removes the control,
// stream and current dump segments (the fixed "_full" one, or the dynamic
// one named in the control block), and — for a recurse-mode parent —
// every recorded child and the registry itself (spec.md §4.G teardown).
// Called after Close, when the control block is no longer mapped, the
// dynamic dump's name cannot be read and only the fixed names are removed.
func (d *Dict) Unlink() error {
	d.closed.Store(true)
	if d.reg != nil {
		if err := d.reg.teardown(); err != nil {
			d.opts.Logger.Printf("shmdict: registry teardown for %q: %v", d.name, err)
		}
	}
	if d.controlSeg.Len() < controlBlockSize {
		UnlinkSegment(d.name+"_full", true)
	} else if d.cb.dumpStaticSize() > 0 {
		UnlinkSegment(d.name+"_full", true)
	} else if name := d.cb.dumpName(); name != "" {
		UnlinkSegment(name, true)
	}
	UnlinkSegment(d.name+"_memory", true)
	err := UnlinkSegment(d.name, true)
	d.closeHandles()
	return err
}
