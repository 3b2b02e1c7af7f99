// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ld links eZ80 ADL relocatable object files and library
// archives into a flat binary image.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/ez80toolchain/linker"
)

type dirList []string

func (d *dirList) String() string     { return strings.Join(*d, ",") }
func (d *dirList) Set(v string) error { *d = append(*d, v); return nil }

var (
	outFile  string
	baseAddr string
	mapFile  string
	libDirs  dirList
	verbose  bool
)

func init() {
	flag.StringVar(&outFile, "o", "a.out", "output file")
	flag.StringVar(&baseAddr, "b", "0x000000", "base address (hex)")
	flag.StringVar(&mapFile, "m", "", "write a map file")
	flag.Var(&libDirs, "L", "add a library search directory")
	flag.BoolVar(&verbose, "v", false, "verbose output")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: ld [-o OUTFILE] [-b HEXADDR] [-m MAPFILE] [-L DIR] [-lNAME | -l NAME] [-v] [-h] OBJ...\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	// '-l' accepts both a joined ("-lc") and a separated ("-l c") form,
	// which the standard flag package cannot express directly; split
	// it out of os.Args before handing the rest to flag.Parse, exactly
	// as the CLI's documented argument grammar requires.
	rest, libNames, err := extractLibNames(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.CommandLine.Parse(rest)

	objs := flag.Args()
	if len(objs) == 0 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}

	base, err := parseHex(baseAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ld:", err)
		os.Exit(1)
	}

	cfg := linker.Config{
		Objects:  objs,
		OutPath:  outFile,
		BaseAddr: base,
		MapPath:  mapFile,
		LibDirs:  libDirs,
		LibNames: libNames,
		Verbose:  verbose,
	}

	if _, err := linker.Link(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "ld:", err)
		os.Exit(1)
	}
}

// extractLibNames scans args for every -l occurrence (joined or
// separated), removing them and returning the library names found
// alongside the remaining arguments, preserved in order for
// everything else.
func extractLibNames(args []string) (rest []string, libNames []string, err error) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-l" || a == "--l":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("ld: -l requires a library name")
			}
			libNames = append(libNames, args[i+1])
			i++
		case strings.HasPrefix(a, "-l") && len(a) > 2:
			libNames = append(libNames, a[2:])
		default:
			rest = append(rest, a)
		}
	}
	return rest, libNames, nil
}

func parseHex(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid base address %q", s)
	}
	return int(v), nil
}
