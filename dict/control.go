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
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// controlBlockSize is the fixed size of the control segment (spec.md §3).
const controlBlockSize = 1000

// Field offsets within the control block, little-endian, unsigned.
const (
	offStreamEnd       = 0  // u32
	offLockPID         = 4  // u32
	offLockByte        = 8  // u16 (low byte used)
	offDumpCounter     = 10 // u32
	offDumpStaticSize  = 14 // u32
	offSharedLockFlag  = 18 // u8
	offRecurseFlag     = 19 // u8
	offDumpName        = 20 // 255 bytes
)

// controlBlock is a thin, struct-free view over a mapped control segment.
// All reads are torn-read tolerant: validation happens one layer up via
// frame sentinels (stream.go) or the monotonic dump counter (dump.go).
type controlBlock struct {
	seg *Segment
}

func newControlBlock(seg *Segment) *controlBlock {
	if seg.Len() < controlBlockSize {
		panic("shmdict: control segment smaller than controlBlockSize")
	}
	return &controlBlock{seg: seg}
}

func (c *controlBlock) bytes() []byte { return c.seg.Bytes() }

// u32At returns an *uint32 aliased onto the mapped bytes at off, for use
// with sync/atomic. offStreamEnd and offLockPID fall on natural 4-byte
// boundaries; offDumpCounter (10) and offDumpStaticSize (14) do not, since
// the wire layout in §3 is fixed independent of word alignment. See
// DESIGN.md's note on dump_counter for the platform caveat this implies.
func (c *controlBlock) u32At(off int) *uint32 {
	b := c.bytes()
	return (*uint32)(unsafe.Pointer(&b[off]))
}

func (c *controlBlock) u16At(off int) *uint16 {
	b := c.bytes()
	return (*uint16)(unsafe.Pointer(&b[off]))
}

func (c *controlBlock) streamEnd() uint32        { return atomic.LoadUint32(c.u32At(offStreamEnd)) }
func (c *controlBlock) setStreamEnd(v uint32)     { atomic.StoreUint32(c.u32At(offStreamEnd), v) }
func (c *controlBlock) dumpCounter() uint32       { return atomic.LoadUint32(c.u32At(offDumpCounter)) }
func (c *controlBlock) setDumpCounter(v uint32)   { atomic.StoreUint32(c.u32At(offDumpCounter), v) }
func (c *controlBlock) lockPID() uint32           { return atomic.LoadUint32(c.u32At(offLockPID)) }
func (c *controlBlock) setLockPID(v uint32)       { atomic.StoreUint32(c.u32At(offLockPID), v) }
func (c *controlBlock) dumpStaticSize() uint32    { return binary.LittleEndian.Uint32(c.bytes()[offDumpStaticSize:]) }
func (c *controlBlock) setDumpStaticSize(v uint32) {
	binary.LittleEndian.PutUint32(c.bytes()[offDumpStaticSize:], v)
}

// lockByte treats the low byte of the u16 lock cell as the atomic
// test-and-set flag (spec.md §3: "low byte used").
func (c *controlBlock) lockByteExchange(newVal uint16) uint16 {
	return atomic.SwapUint16(c.u16At(offLockByte), newVal)
}

func (c *controlBlock) lockByteCAS(old, new uint16) bool {
	return atomic.CompareAndSwapUint16(c.u16At(offLockByte), old, new)
}

func (c *controlBlock) lockByteLoad() uint16 {
	return atomic.LoadUint16(c.u16At(offLockByte))
}

func (c *controlBlock) sharedLockFlag() bool { return c.bytes()[offSharedLockFlag] == '1' }
func (c *controlBlock) setSharedLockFlag(v bool) {
	c.bytes()[offSharedLockFlag] = boolByte(v)
}

func (c *controlBlock) recurseFlag() bool { return c.bytes()[offRecurseFlag] == '1' }
func (c *controlBlock) setRecurseFlag(v bool) {
	c.bytes()[offRecurseFlag] = boolByte(v)
}

func boolByte(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}

func (c *controlBlock) dumpName() string {
	raw := c.bytes()[offDumpName : offDumpName+maxNameLen]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func (c *controlBlock) setDumpName(name string) {
	if len(name) > maxNameLen {
		panic("shmdict: dump name exceeds 255 bytes")
	}
	dst := c.bytes()[offDumpName : offDumpName+maxNameLen]
	clear(dst)
	copy(dst, name)
}

// init stamps a freshly created control segment with the static
// configuration agreed at creation time.
func (c *controlBlock) init(bufferSize, fullDumpSize uint32, sharedLock, recurse bool) {
	clear(c.bytes())
	c.setStreamEnd(0)
	c.setLockPID(0)
	c.lockByteExchange(0)
	c.setDumpCounter(0)
	c.setDumpStaticSize(fullDumpSize)
	c.setSharedLockFlag(sharedLock)
	c.setRecurseFlag(recurse)
	c.setDumpName("")
	_ = bufferSize // buffer size lives in the stream segment's own length, not the control block
}
