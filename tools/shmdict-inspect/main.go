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

// Command shmdict-inspect attaches read-only to a shared map's control,
// stream and dump segments and prints their decoded layout directly, never
// going through the library's lock or replica machinery. It exists for
// post-mortem debugging of a segment left behind by a crashed process, the
// way tools/jitgen exists standalone from the rest of the storage engine.
package main

import (
	"flag"
	"fmt"
	"os"

	units "github.com/docker/go-units"

	"github.com/launix-de/shmdict/dict"
)

func main() {
	name := flag.String("name", "", "control segment name to inspect")
	compressed := flag.Bool("compressed", false, "dump payload was written with CompressDumps")
	flag.Parse()
	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: shmdict-inspect -name <segment>")
		os.Exit(2)
	}

	if err := inspect(*name, *compressed); err != nil {
		fmt.Fprintln(os.Stderr, "shmdict-inspect:", err)
		os.Exit(1)
	}
}

func inspect(name string, compressed bool) error {
	controlSeg, err := dict.AttachSegment(name)
	if err != nil {
		return fmt.Errorf("attach control segment: %w", err)
	}
	defer controlSeg.Close()

	info, err := dict.InspectControlSegment(controlSeg)
	if err != nil {
		return fmt.Errorf("decode control block: %w", err)
	}
	fmt.Printf("control segment %q: %s\n", name, units.BytesSize(float64(controlSeg.Len())))
	fmt.Printf("  stream_end=%d lock_pid=%d lock_byte=%d dump_counter=%d\n",
		info.StreamEnd, info.LockPID, info.LockByte, info.DumpCounter)
	fmt.Printf("  shared_lock=%v recurse=%v dump_static_size=%d dump_name=%q\n",
		info.SharedLock, info.Recurse, info.DumpStaticSize, info.DumpName)

	if streamSeg, err := dict.AttachSegment(name + "_memory"); err != nil {
		fmt.Printf("stream segment: unavailable (%v)\n", err)
	} else {
		defer streamSeg.Close()
		fmt.Printf("stream segment %q: %s\n", name+"_memory", units.BytesSize(float64(streamSeg.Len())))
		frames, ferr := dict.ListFrames(streamSeg, info.StreamEnd)
		for _, f := range frames {
			fmt.Printf("  [%d] %s %q\n", f.Offset, f.Op, f.Key)
		}
		if ferr != nil {
			fmt.Printf("  frame list truncated: %v\n", ferr)
		}
	}

	dumpName := info.DumpName
	if info.DumpStaticSize > 0 {
		dumpName = name + "_full"
	}
	if dumpName == "" {
		return nil
	}
	dumpSeg, err := dict.AttachSegment(dumpName)
	if err != nil {
		fmt.Printf("dump segment %q: unavailable (%v)\n", dumpName, err)
		return nil
	}
	defer dumpSeg.Close()
	fmt.Printf("dump segment %q: %s\n", dumpName, units.BytesSize(float64(dumpSeg.Len())))
	if n, err := dict.DumpEntryCount(dumpSeg, compressed); err != nil {
		fmt.Printf("  dump decode failed: %v\n", err)
	} else {
		fmt.Printf("  entries=%d\n", n)
	}
	return nil
}
