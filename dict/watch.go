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
	"strings"

	"github.com/fsnotify/fsnotify"
)

// SegmentWatcher reports creation and removal of named segments under the
// shared-memory directory, for operators who want to see dump rotation or
// a crashed peer's segments disappear without polling. It is purely
// diagnostic: nothing in the Sync Engine depends on it.
type SegmentWatcher struct {
	w      *fsnotify.Watcher
	prefix string
	done   chan struct{}
}

// SegmentEvent describes one create or remove observed under shmDir.
type SegmentEvent struct {
	Name    string
	Removed bool
}

// WatchSegments starts watching shmDir for files beginning with prefix
// (typically a map's control-segment name) and delivers events to onEvent
// from a background goroutine until Close is called.
func WatchSegments(prefix string, onEvent func(SegmentEvent)) (*SegmentWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errCannotAttach("fsnotify watcher", err)
	}
	if err := w.Add(shmDir); err != nil {
		w.Close()
		return nil, errCannotAttach(shmDir, err)
	}

	sw := &SegmentWatcher{w: w, prefix: prefix, done: make(chan struct{})}
	go sw.loop(onEvent)
	return sw, nil
}

func (sw *SegmentWatcher) loop(onEvent func(SegmentEvent)) {
	defer close(sw.done)
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			name := ev.Name[strings.LastIndex(ev.Name, "/")+1:]
			if !strings.HasPrefix(name, sw.prefix) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				onEvent(SegmentEvent{Name: name, Removed: false})
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				onEvent(SegmentEvent{Name: name, Removed: true})
			}
		case _, ok := <-sw.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (sw *SegmentWatcher) Close() error {
	err := sw.w.Close()
	<-sw.done
	return err
}
