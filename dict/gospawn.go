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
	"runtime/debug"

	"github.com/jtolds/gls"
)

// spawnBackground runs fn in a new goroutine with the same panic-recovery
// discipline storage/compute.go uses for its shard worker pool: a panic is
// logged instead of crashing the process, since background cleanup (e.g.
// unlinking a superseded dump segment) must never take down a caller that
// merely happened to trigger a full dump.
func (d *Dict) spawnBackground(fn func()) {
	gls.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				d.opts.Logger.Printf("shmdict: recovered panic in background task: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	})
}
