// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command tyvaldump decodes a stream of concatenated framed `a` values
// and prints each one, one per line, in native or JSON-like form.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tyval-io/tyval"
)

func main() {
	native := flag.Bool("native", false, "print in native <type>value form instead of JSON")
	maxLen := flag.Int("maxlen", 0, "truncate printed output after this many bytes (0 = unbounded)")
	flag.Parse()

	o := bufio.NewWriter(os.Stdout)
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}

	opts := tyval.PrintOptions{MaxLen: *maxLen}

	for _, arg := range args {
		if err := dumpFile(o, arg, *native, opts); err != nil {
			fmt.Fprintf(os.Stderr, "input %s: %s\n", arg, err)
			os.Exit(1)
		}
	}
	if err := o.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpFile(o *bufio.Writer, arg string, native bool, opts tyval.PrintOptions) error {
	var in *os.File
	if arg == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("can't open %q: %w", arg, err)
		}
		defer f.Close()
		in = f
	}
	buf, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	for len(buf) > 0 {
		a, n, err := tyval.DecodeAny(buf)
		if err != nil {
			return err
		}
		var s string
		if native {
			s, err = a.PrintNative(opts)
		} else {
			s, err = a.PrintJSON(opts)
		}
		if err != nil && err != tyval.ErrTruncated {
			return err
		}
		if _, err := fmt.Fprintln(o, s); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
