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

func TestDefaultSerializerRoundtrip(t *testing.T) {
	s := DefaultSerializer()
	cases := []any{
		nil,
		true,
		false,
		int64(42),
		int64(-1),
		3.14159,
		"hello world",
		[]byte{1, 2, 3},
		childRef{Name: "shmdict_child_abc"},
	}
	for _, v := range cases {
		encoded, err := s.Encode(v)
		require.NoError(t, err)
		decoded, err := s.Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestDefaultSerializerRejectsUnknownType(t *testing.T) {
	s := DefaultSerializer()
	_, err := s.Encode(struct{ X int }{1})
	require.Error(t, err)
}

func TestDefaultSerializerRejectsTruncatedBuffer(t *testing.T) {
	s := DefaultSerializer()
	_, err := s.Decode([]byte{byte(tagString)})
	require.Error(t, err)
}
