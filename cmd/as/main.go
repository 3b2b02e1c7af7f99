// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command as assembles a single eZ80 ADL source file into a relocatable
// object file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/ez80toolchain/asm"
)

var (
	outFile string
	verbose bool
)

func init() {
	flag.StringVar(&outFile, "o", "", "output file")
	flag.BoolVar(&verbose, "v", false, "verbose output")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: as [-o OUTFILE] [-v] [-h] INPUT.asm\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}
	input := args[0]

	out := outFile
	if out == "" {
		out = defaultOutputPath(input)
	}

	var options asm.Option
	if verbose {
		options |= asm.Verbose
	}

	if err := asm.AssembleFile(input, out, options); err != nil {
		os.Exit(1)
	}
}

// defaultOutputPath replaces the input's final dot-extension with ".o",
// or appends ".o" if the basename has no extension.
func defaultOutputPath(input string) string {
	dir, base := filepath.Split(input)
	ext := filepath.Ext(base)
	if ext == "" {
		return filepath.Join(dir, base+".o")
	}
	trimmed := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, trimmed+".o")
}
