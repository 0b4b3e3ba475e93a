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
	"math"
)

// Serializer encodes and decodes the single top-level value passed to it.
// Implementations must be deterministic and self-delimiting (spec.md §6):
// Decode must consume exactly the bytes Encode produced for that value,
// with no external length needed.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// tag identifies the dynamic type of an encoded value, mirroring the
// per-column type tags in storage/storage-int.go and storage/storage-string.go.
type tag byte

const (
	tagNil tag = iota
	tagBool
	tagInt64
	tagFloat64
	tagString
	tagBytes
	tagChildRef // recurse mode: a reference to a nested Dict by segment name
)

// childRef is the "dedicated encoding" for recurse mode called for in
// spec.md §9: a tagged reference to the child's control-segment name,
// rather than asking the serializer to understand the wrapper type itself.
type childRef struct {
	Name string
}

type defaultSerializer struct{}

// DefaultSerializer returns the built-in self-delimiting binary codec. It
// handles nil, bool, int64, float64, string, []byte and, when used inside
// a recurse-enabled Dict, childRef values.
func DefaultSerializer() Serializer { return defaultSerializer{} }

func (defaultSerializer) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return []byte{byte(tagNil)}, nil
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return []byte{byte(tagBool), b}, nil
	case int:
		return encodeInt64(int64(x)), nil
	case int64:
		return encodeInt64(x), nil
	case float64:
		buf := make([]byte, 9)
		buf[0] = byte(tagFloat64)
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(x))
		return buf, nil
	case string:
		return encodeLenPrefixed(tagString, []byte(x)), nil
	case []byte:
		return encodeLenPrefixed(tagBytes, x), nil
	case childRef:
		return encodeLenPrefixed(tagChildRef, []byte(x.Name)), nil
	default:
		return nil, fmt.Errorf("shmdict: default serializer cannot encode %T", v)
	}
}

func encodeInt64(x int64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(tagInt64)
	binary.LittleEndian.PutUint64(buf[1:], uint64(x))
	return buf
}

func encodeLenPrefixed(t tag, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = byte(t)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

func (defaultSerializer) Decode(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("shmdict: cannot decode empty buffer")
	}
	switch tag(b[0]) {
	case tagNil:
		return nil, nil
	case tagBool:
		if len(b) < 2 {
			return nil, fmt.Errorf("shmdict: truncated bool")
		}
		return b[1] != 0, nil
	case tagInt64:
		if len(b) < 9 {
			return nil, fmt.Errorf("shmdict: truncated int64")
		}
		return int64(binary.LittleEndian.Uint64(b[1:9])), nil
	case tagFloat64:
		if len(b) < 9 {
			return nil, fmt.Errorf("shmdict: truncated float64")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b[1:9])), nil
	case tagString:
		payload, err := decodeLenPrefixed(b)
		if err != nil {
			return nil, err
		}
		return string(payload), nil
	case tagBytes:
		return decodeLenPrefixed(b)
	case tagChildRef:
		payload, err := decodeLenPrefixed(b)
		if err != nil {
			return nil, err
		}
		return childRef{Name: string(payload)}, nil
	default:
		return nil, fmt.Errorf("shmdict: unknown type tag %d", b[0])
	}
}

func decodeLenPrefixed(b []byte) ([]byte, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("shmdict: truncated length-prefixed value")
	}
	n := binary.LittleEndian.Uint32(b[1:5])
	if uint32(len(b)-5) < n {
		return nil, fmt.Errorf("shmdict: length-prefixed value shorter than declared")
	}
	return b[5 : 5+n], nil
}
