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

func TestEncodeDecodeFrameRoundtrip(t *testing.T) {
	rec := record{op: opSet, key: []byte("hello"), value: []byte("world")}
	frame := encodeFrame(rec)
	require.Equal(t, frameSentinel, frame[0])
	require.Equal(t, frameSentinel, frame[5])

	payloadLen, err := validateFrame(frame, 0)
	require.NoError(t, err)

	payload := frame[frameHeaderSize : frameHeaderSize+payloadLen]
	got, err := decodePayload(payload)
	require.NoError(t, err)
	require.Equal(t, rec.op, got.op)
	require.Equal(t, rec.key, got.key)
	require.Equal(t, rec.value, got.value)
}

func TestValidateFrameRejectsBadSentinels(t *testing.T) {
	buf := make([]byte, 16)
	_, err := validateFrame(buf, 0)
	require.Error(t, err)
	require.True(t, IsKind(err, KindCorruption))
}

func TestValidateFrameRejectsTruncatedBuffer(t *testing.T) {
	rec := record{op: opDelete, key: []byte("k"), value: nil}
	frame := encodeFrame(rec)
	_, err := validateFrame(frame[:frameHeaderSize-1], 0)
	require.Error(t, err)
}

func TestAppendRecordAdvancesPosition(t *testing.T) {
	buf := make([]byte, 128)
	rec := record{op: opSet, key: []byte("a"), value: []byte("1")}
	newPos, ok := appendRecord(buf, 0, rec)
	require.True(t, ok)
	require.Equal(t, uint32(len(encodeFrame(rec))), newPos)
}

func TestAppendRecordRefusesOverflow(t *testing.T) {
	buf := make([]byte, 4)
	rec := record{op: opSet, key: []byte("a"), value: []byte("1")}
	_, ok := appendRecord(buf, 0, rec)
	require.False(t, ok)
}
