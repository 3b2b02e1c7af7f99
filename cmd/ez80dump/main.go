// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ez80dump inspects eZ80 ADL relocatable object files and
// library archives: a pure consumer of the object file format (see
// package objfile), with an optional interactive inspection shell.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/beevik/ez80toolchain/objfile"
)

var (
	verbose     bool
	interactive bool
)

func init() {
	flag.BoolVar(&verbose, "v", false, "verbose: dump full tables for every archive member")
	flag.BoolVar(&interactive, "i", false, "start an interactive inspection shell")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: ez80dump [-v] [-i] [-h] FILE...\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}

	if interactive {
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "ez80dump: -i accepts exactly one file")
			os.Exit(1)
		}
		if err := runInteractive(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, "ez80dump:", err)
			os.Exit(1)
		}
		return
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	status := 0
	for _, path := range args {
		if err := dumpFile(out, path); err != nil {
			fmt.Fprintln(os.Stderr, "ez80dump:", err)
			status = 1
		}
	}
	out.Flush()
	os.Exit(status)
}

func dumpFile(out *bufio.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	defer f.Close()

	members, err := objfile.ScanArchive(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(out, "%s:\n", path)
	if len(members) != 1 {
		dumpArchiveMembers(out, members)
		if !verbose {
			return nil
		}
		for i, m := range members {
			fmt.Fprintf(out, "\n-- member %d --\n", i)
			obj, err := objfile.ReadMember(f, m)
			if err != nil {
				return fmt.Errorf("%s: member %d: %w", path, i, err)
			}
			dumpObject(out, obj)
		}
		return nil
	}

	obj, err := objfile.ReadMember(f, members[0])
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	dumpObject(out, obj)
	return nil
}

func runInteractive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	members, err := objfile.ScanArchive(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(members) != 1 {
		return fmt.Errorf("%s: interactive mode requires a single object file, not an archive of %d", path, len(members))
	}

	obj, err := objfile.ReadMember(f, members[0])
	if err != nil {
		return err
	}

	return newShell(path, obj).run()
}
