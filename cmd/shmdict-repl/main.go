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

// Command shmdict-repl is a readline-driven interactive shell for poking at
// a shared map from the terminal.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/shmdict/dict"
)

func main() {
	name := flag.String("name", "", "control segment name to attach or create (empty creates a fresh scratch map)")
	bufferSize := flag.Uint("buffer-size", 0, "stream buffer size in bytes, 0 = default")
	recurse := flag.Bool("recurse", false, "enable nested map support")
	flag.Parse()

	d, err := dict.New(dict.Options{
		Name:       *name,
		BufferSize: uint32(*bufferSize),
		Recurse:    *recurse,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmdict-repl:", err)
		os.Exit(1)
	}
	defer d.Close()

	fmt.Printf("attached to %q (recurse=%v)\n", d.Name(), *recurse)

	rl, err := readline.New(d.Name() + "> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmdict-repl:", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "shmdict-repl:", err)
			return
		}
		if err := dispatch(d, strings.TrimSpace(line)); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func dispatch(d *dict.Dict, line string) error {
	if line == "" {
		return nil
	}
	fields := strings.SplitN(line, " ", 3)
	switch fields[0] {
	case "get":
		if len(fields) < 2 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := d.Get([]byte(fields[1]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		fmt.Printf("%v\n", v)
		return nil

	case "set":
		if len(fields) < 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return d.Set([]byte(fields[1]), inferValue(fields[2]))

	case "del":
		if len(fields) < 2 {
			return fmt.Errorf("usage: del <key>")
		}
		return d.Delete([]byte(fields[1]))

	case "len":
		n, err := d.Len()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	case "keys":
		keys, err := d.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Printf("%v\n", k)
		}
		return nil

	case "stat":
		fmt.Println(d)
		return nil

	case "quit", "exit":
		os.Exit(0)
		return nil

	default:
		return fmt.Errorf("unknown command %q (try get/set/del/len/keys/stat/quit)", fields[0])
	}
}

// inferValue gives the REPL a little convenience: bare integers and floats
// are typed as such, "true"/"false" become bools, everything else is a
// string, matching how scm's own
// prompt reader infers atom types before falling back to a string literal.
func inferValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}
