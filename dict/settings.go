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

import "github.com/dc0d/onexit"

// SettingsT holds process-wide defaults, mutable before the first Dict in
// this process is opened. Shape follows storage/settings.go's SettingsT.
type SettingsT struct {
	SpinBudget        int
	DefaultBufferSize uint32
	MonitorBacklog    int
}

// Settings is the live, mutable configuration singleton. Mutate it before
// opening the first Dict in this process; lock.go and options.go read these
// fields at the point of use rather than caching them at package init.
var Settings = SettingsT{
	SpinBudget:        10_000,
	DefaultBufferSize: 10_000,
	MonitorBacklog:    256,
}

// registerAutoUnlink arranges for cleanup to run when the process exits,
// even if the owning Dict's Close was never called explicitly. Mirrors
// storage/settings.go's use of onexit.Register for trace-file cleanup.
func registerAutoUnlink(cleanup func()) {
	onexit.Register(cleanup)
}
