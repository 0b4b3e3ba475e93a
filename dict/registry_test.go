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

func TestRegistryRecordAndNames(t *testing.T) {
	name := freshName(t)
	parent := newTestDict(t, Options{Name: name, Recurse: true})
	require.NotNil(t, parent.reg)

	child, err := New(Options{Name: name + "_child1", AutoUnlink: boolPtr(false)})
	require.NoError(t, err)

	require.NoError(t, parent.reg.recordChild(name+"_child1", child))

	names, err := parent.reg.names()
	require.NoError(t, err)
	require.Contains(t, names, name+"_child1")

	got, ok := parent.reg.attachedChild(name + "_child1")
	require.True(t, ok)
	require.Same(t, child, got)
}

func TestRegistryTeardownUnlinksChildren(t *testing.T) {
	name := freshName(t)
	parent := newTestDict(t, Options{Name: name, Recurse: true})

	child, err := New(Options{Name: name + "_child2", AutoUnlink: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, parent.reg.recordChild(name+"_child2", child))

	require.NoError(t, parent.reg.teardown())

	_, err = AttachSegment(name + "_child2")
	require.Error(t, err)
}
