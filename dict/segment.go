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
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// shmDir is where named segments live. /dev/shm is tmpfs-backed on Linux;
// it falls back to the OS temp dir on platforms that lack it (the segment
// is then merely a regular mmap'd file, losing the tmpfs guarantee but
// keeping the protocol intact).
var shmDir = func() string {
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}()

func segmentPath(name string) string {
	return shmDir + "/" + name
}

// Segment is a named, host-addressable contiguous byte region (spec.md
// §4.A). It is backed by a regular file sized with ftruncate and mapped
// MAP_SHARED so that writes are visible to every attached peer without an
// explicit flush.
type Segment struct {
	mu        sync.Mutex
	name      string
	data      []byte
	creator   bool
	closed    bool
	ignoreErr bool
}

// CreateSegment creates a brand-new named segment of the given size. It
// fails if a segment with that name already exists.
func CreateSegment(name string, size uint32) (*Segment, error) {
	if size == 0 {
		return nil, errCannotAttach(name, fmt.Errorf("size must be > 0"))
	}
	fd, err := unix.Open(segmentPath(name), unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return nil, errCannotAttach(name, err)
	}
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Unlink(segmentPath(name))
		return nil, errCannotAttach(name, err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Unlink(segmentPath(name))
		return nil, errCannotAttach(name, err)
	}
	return &Segment{name: name, data: data, creator: true}, nil
}

// AttachSegment attaches an existing named segment. It fails if the segment
// does not exist or cannot be mapped.
func AttachSegment(name string) (*Segment, error) {
	fd, err := unix.Open(segmentPath(name), unix.O_RDWR, 0)
	if err != nil {
		return nil, errCannotAttach(name, err)
	}
	defer unix.Close(fd)
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, errCannotAttach(name, err)
	}
	size := st.Size
	if size <= 0 {
		return nil, errCannotAttach(name, fmt.Errorf("zero-size segment"))
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errCannotAttach(name, err)
	}
	return &Segment{name: name, data: data}, nil
}

// OpenOrCreateSegment attaches name if it exists, otherwise creates it with
// size and marks the returned handle as the creator (spec.md §4.A).
func OpenOrCreateSegment(name string, size uint32) (*Segment, error) {
	seg, err := AttachSegment(name)
	if err == nil {
		return seg, nil
	}
	if !os.IsNotExist(unwrapOSErr(err)) {
		return nil, err
	}
	seg, err = CreateSegment(name, size)
	if err != nil && os.IsExist(unwrapOSErr(err)) {
		// lost a race with another creator; attach instead.
		return AttachSegment(name)
	}
	return seg, err
}

func unwrapOSErr(err error) error {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		if e.Err != nil {
			return e.Err
		}
	}
	return err
}

// Name returns the segment's name.
func (s *Segment) Name() string { return s.name }

// IsCreator reports whether this handle created the segment.
func (s *Segment) IsCreator() bool { return s.creator }

// Bytes exposes the mapped region. Callers must not retain the slice past
// Close.
func (s *Segment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Len returns the segment size in bytes.
func (s *Segment) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Close unmaps the segment. Idempotent.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}

// UnlinkSegment removes a named segment from the host namespace. Backing
// pages already mapped by other handles remain valid until they close
// (glossary: Unlink). When ignoreErrors is true, an absent segment is not
// an error.
func UnlinkSegment(name string, ignoreErrors bool) error {
	err := unix.Unlink(segmentPath(name))
	if err != nil && ignoreErrors {
		return nil
	}
	return err
}
