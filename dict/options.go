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

import "log"

// maxNameLen is the control block's dump_name field width (§3).
const maxNameLen = 255

// Options configures the creation or attachment of a Dict.
type Options struct {
	// Name is the control-segment name. Empty means system-assigned
	// (a fresh uuid), which always creates rather than attaches.
	Name string

	// BufferSize is the size in bytes of the update stream buffer.
	// Must be < 1<<32. Defaults to 10_000.
	BufferSize uint32

	// FullDumpSize, if nonzero, preallocates a fixed-size dump segment
	// that is reused for every generation instead of allocating a
	// uniquely-named segment per dump.
	FullDumpSize uint32

	// Serializer encodes/decodes keys and values. Defaults to
	// DefaultSerializer().
	Serializer Serializer

	// SharedLock selects the cross-process atomic lock cell (true) or an
	// in-process reentrant mutex (false). Must match the creator's choice.
	SharedLock bool

	// Recurse enables nested-map wrapping of mapping-valued entries. Must
	// match the creator's choice.
	Recurse bool

	// RecurseRegister overrides the default "<name>_register" registry.
	RecurseRegister string

	// AutoUnlink, if true on the handle that created the control segment,
	// unlinks the map's segments (and, in recurse mode, the registry and
	// all recorded children) when Close is called or the process exits. It
	// has no effect on a handle that attached to an existing segment.
	// Defaults to true for creators, false for attachers, unless
	// explicitly set — this default
	// can only be resolved once it is known whether this handle actually
	// created the control segment, so New sets it after opening the
	// segment rather than here.
	AutoUnlink *bool

	// CompressDumps wraps full-dump payloads with lz4 before framing them
	// (domain-stack addition, SPEC_FULL.md §4.H). Does not affect stream
	// records.
	CompressDumps bool

	// Logger receives diagnostic messages. Defaults to log.Default().
	Logger *log.Logger
}

// withDefaults fills in every field resolvable without knowing whether this
// handle turns out to be the segment's creator. AutoUnlink depends on that
// and is resolved separately by New once OpenOrCreateSegment has run.
func (o Options) withDefaults() Options {
	if o.BufferSize == 0 {
		o.BufferSize = Settings.DefaultBufferSize
	}
	if o.Serializer == nil {
		o.Serializer = DefaultSerializer()
	}
	if o.RecurseRegister == "" && o.Name != "" {
		o.RecurseRegister = o.Name + "_register"
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

func (o Options) autoUnlink() bool {
	return o.AutoUnlink != nil && *o.AutoUnlink
}
