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

// This file backs tools/shmdict-inspect: every function here reads a mapped
// segment's bytes directly and returns a plain value, without acquiring the
// Lock, opening a localReplica, or running the Sync Engine — for looking at
// a segment potentially left behind by a crashed peer (SPEC_FULL.md §4.K).

// ControlInfo is a decoded, read-only snapshot of a control segment.
type ControlInfo struct {
	StreamEnd      uint32
	LockPID        uint32
	LockByte       uint16
	DumpCounter    uint32
	DumpStaticSize uint32
	SharedLock     bool
	Recurse        bool
	DumpName       string
}

// InspectControlSegment decodes seg's control block fields directly.
func InspectControlSegment(seg *Segment) (ControlInfo, error) {
	if seg.Len() < controlBlockSize {
		return ControlInfo{}, errCorruption("control segment smaller than controlBlockSize")
	}
	cb := newControlBlock(seg)
	return ControlInfo{
		StreamEnd:      cb.streamEnd(),
		LockPID:        cb.lockPID(),
		LockByte:       cb.lockByteLoad(),
		DumpCounter:    cb.dumpCounter(),
		DumpStaticSize: cb.dumpStaticSize(),
		SharedLock:     cb.sharedLockFlag(),
		Recurse:        cb.recurseFlag(),
		DumpName:       cb.dumpName(),
	}, nil
}

// FrameInfo describes one decoded stream frame.
type FrameInfo struct {
	Offset uint32
	Op     string
	Key    []byte
}

// ListFrames walks every frame in [0, streamEnd) of a stream segment and
// decodes its offset/op/key. It stops and returns what it found so far,
// plus the error, on the first corrupt frame.
func ListFrames(streamSeg *Segment, streamEnd uint32) ([]FrameInfo, error) {
	var out []FrameInfo
	buf := streamSeg.Bytes()
	pos := uint32(0)
	for pos < streamEnd {
		payloadLen, err := validateFrame(buf, pos)
		if err != nil {
			return out, err
		}
		frameEnd := pos + frameHeaderSize + payloadLen
		rec, err := decodePayload(buf[pos+frameHeaderSize : frameEnd])
		if err != nil {
			return out, err
		}
		op := "delete"
		if rec.op == opSet {
			op = "set"
		}
		out = append(out, FrameInfo{Offset: pos, Op: op, Key: rec.key})
		pos = frameEnd
	}
	return out, nil
}

// DumpEntryCount decodes a dump segment just far enough to report its entry
// count, without materializing it into a Dict's replica.
func DumpEntryCount(seg *Segment, compressed bool) (int, error) {
	entries, err := decodeDumpSegment(seg, compressed)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
