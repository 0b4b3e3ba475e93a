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
	"fmt"
)

// Frame sentinels (spec.md §3): 0xFF <len:u32 LE> 0xFF <payload>.
const (
	frameSentinel   byte = 0xFF
	frameHeaderSize      = 6
)

type opKind byte

const (
	opDelete opKind = 0
	opSet    opKind = 1
)

// record is the decoded form of one stream frame's payload.
type record struct {
	op    opKind
	key   []byte
	value []byte
}

// encodeFrame serializes a record into a self-contained 0xFF len 0xFF frame.
func encodeFrame(r record) []byte {
	payload := make([]byte, 0, 1+4+len(r.key)+4+len(r.value))
	payload = append(payload, byte(r.op))
	payload = appendLenPrefixed(payload, r.key)
	payload = appendLenPrefixed(payload, r.value)

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = frameSentinel
	binary.LittleEndian.PutUint32(frame[1:5], uint32(len(payload)))
	frame[5] = frameSentinel
	copy(frame[6:], payload)
	return frame
}

func appendLenPrefixed(dst, payload []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, payload...)
}

func decodePayload(payload []byte) (record, error) {
	if len(payload) < 1+4 {
		return record{}, errCorruption("payload shorter than minimum header")
	}
	r := record{op: opKind(payload[0])}
	rest := payload[1:]
	key, rest, err := takeLenPrefixed(rest)
	if err != nil {
		return record{}, err
	}
	r.key = key
	value, rest, err := takeLenPrefixed(rest)
	if err != nil {
		return record{}, err
	}
	if len(rest) != 0 {
		return record{}, errCorruption("trailing bytes after value")
	}
	r.value = value
	return r, nil
}

func takeLenPrefixed(b []byte) (value, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errCorruption("truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, errCorruption("truncated length-prefixed field")
	}
	return b[:n], b[n:], nil
}

// validateFrame checks the sentinel bytes at pos and returns the declared
// payload length. It does not read past buf's bounds.
func validateFrame(buf []byte, pos uint32) (payloadLen uint32, err error) {
	if uint64(pos)+frameHeaderSize > uint64(len(buf)) {
		return 0, errCorruption("frame header runs past buffer")
	}
	if buf[pos] != frameSentinel {
		return 0, errCorruption(fmt.Sprintf("bad leading sentinel at %d", pos))
	}
	n := binary.LittleEndian.Uint32(buf[pos+1 : pos+5])
	if buf[pos+5] != frameSentinel {
		return 0, errCorruption(fmt.Sprintf("bad trailing sentinel at %d", pos+5))
	}
	if uint64(pos)+frameHeaderSize+uint64(n) > uint64(len(buf)) {
		return 0, errCorruption("frame payload runs past buffer")
	}
	return n, nil
}

// appendRecord writes one frame at the stream's current end, returning the
// new end offset. It must be called with the lock held; the caller is
// responsible for publishing the new stream_end only after this returns,
// so that any reader observing the larger stream_end also observes a fully
// written frame (spec.md §4.D's release/publish ordering requirement is
// satisfied because Go's memory model guarantees the plain byte writes here
// happen-before the atomic StoreUint32 the caller performs next).
func appendRecord(buf []byte, pos uint32, r record) (newPos uint32, ok bool) {
	frame := encodeFrame(r)
	if uint64(pos)+uint64(len(frame)) > uint64(len(buf)) {
		return pos, false
	}
	copy(buf[pos:], frame)
	return pos + uint32(len(frame)), true
}
