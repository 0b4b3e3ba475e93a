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
	"sync/atomic"
	"time"
)

var eventTagCounter uint64 = uint64(time.Now().UnixNano())

// nextEventTag returns a fast, process-unique tag built from a counter and
// the clock rather than a real uuid. wrapNested appends it to the parent
// name and key to name a nested child's segment; dynamic dump segments are
// named with github.com/google/uuid instead (see newDumpName).
func nextEventTag() string {
	ctr := atomic.AddUint64(&eventTagCounter, 1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	return fmt.Sprintf("%x", b)
}
