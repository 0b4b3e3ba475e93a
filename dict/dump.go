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
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	lz4 "github.com/pierrec/lz4/v4"
)

// serializeDump encodes the whole replica into one self-delimiting byte
// string, as a count followed by length-prefixed key/value pairs.
func serializeDump(entries map[string][]byte) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])
	for k, v := range entries {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, v)
	}
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func deserializeDump(b []byte) (map[string][]byte, error) {
	if len(b) < 4 {
		return nil, errCorruption("dump payload shorter than count header")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	rest := b[4:]
	entries := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, next, err := takeLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		value, next2, err := takeLenPrefixed(next)
		if err != nil {
			return nil, err
		}
		entries[string(key)] = append([]byte(nil), value...)
		rest = next2
	}
	return entries, nil
}

// compressDump and decompressDump implement the optional lz4 wrapping
// described in SPEC_FULL.md §4.H. They only ever touch full-dump payloads,
// never stream records, so the cheap append path in stream.go is unaffected.
func compressDump(raw []byte) []byte {
	buf := make([]byte, lz4.CompressBlockBound(len(raw))+4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(raw)))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, buf[4:])
	if err != nil || n == 0 {
		// incompressible or tiny input: lz4 requires the destination to be
		// large enough relative to input; fall back to storing raw with a
		// sentinel size of 0 meaning "not compressed".
		out := make([]byte, 4+len(raw))
		binary.LittleEndian.PutUint32(out[:4], 0)
		copy(out[4:], raw)
		return out
	}
	return buf[:4+n]
}

func decompressDump(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, errCorruption("compressed dump shorter than size header")
	}
	originalSize := binary.LittleEndian.Uint32(b[:4])
	if originalSize == 0 {
		return append([]byte(nil), b[4:]...), nil
	}
	out := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(b[4:], out)
	if err != nil {
		return nil, errCorruption("lz4 decompression failed: " + err.Error())
	}
	return out[:n], nil
}

// newDumpName generates a fresh, collision-free name for a dynamic dump
// segment (spec.md §4.E step 5 / DESIGN.md Open Question 1).
func newDumpName(parent string) string {
	return parent + "_" + uuid.NewString()
}
