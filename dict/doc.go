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

// Package dict implements a key/value map whose authoritative state lives in
// named OS shared-memory segments, so that independent processes on the same
// host can observe and mutate it concurrently without a server in between.
//
// Writers append framed updates to a shared update stream under a
// cross-process lock. Readers replay the stream opportunistically on every
// operation; when the stream fills, the writer collapses state into a full
// dump segment and readers resynchronise from that instead. The control
// block layout is in control.go and the frame format in stream.go; see
// DESIGN.md for where each piece comes from.
package dict
