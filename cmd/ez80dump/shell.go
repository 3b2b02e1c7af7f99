package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/ez80toolchain/objfile"
	"github.com/beevik/term"
)

// shell is an interactive object-file inspector: a cmd.Tree of
// subcommands operating on a single decoded object file, mirroring
// go6502's host.go command-loop shape (Lookup, Selection, a prompt
// loop reading from a bufio.Scanner) but retargeted from CPU debugging
// to object-file inspection.
type shell struct {
	name   string
	file   *objfile.File
	out    *bufio.Writer
	in     *bufio.Scanner
	cmds   *cmd.Tree
	width  int
	isTerm bool
}

func newShell(name string, f *objfile.File) *shell {
	s := &shell{name: name, file: f, out: bufio.NewWriter(os.Stdout), in: bufio.NewScanner(os.Stdin)}
	s.cmds = buildShellCommands()

	fd := int(os.Stdout.Fd())
	s.isTerm = term.IsTerminal(fd)
	if s.isTerm {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			s.width = w
		}
	}
	if s.width == 0 {
		s.width = 80
	}
	return s
}

func buildShellCommands() *cmd.Tree {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "ez80dump"})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "symbols",
		Brief:       "List exported symbols",
		Description: "Display every exported symbol in the loaded object file.",
		Usage:       "symbols",
		Data:        (*shell).cmdSymbols,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "relocs",
		Brief:       "List relocation records",
		Description: "Display every relocation record in the loaded object file.",
		Usage:       "relocs",
		Data:        (*shell).cmdRelocs,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "externs",
		Brief:       "List external references",
		Description: "Display the ordered external-name table.",
		Usage:       "externs",
		Data:        (*shell).cmdExterns,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "section",
		Brief:       "Dump a section's raw bytes",
		Description: "Hex-dump the code or data section's raw bytes.",
		Usage:       "section <code|data>",
		Data:        (*shell).cmdSection,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "hex",
		Brief:       "Hex-dump a byte range",
		Description: "Hex-dump <len> bytes of the code section starting at <offset>.",
		Usage:       "hex <offset> <len>",
		Data:        (*shell).cmdHex,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*shell).cmdHelp,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Exit the shell",
		Description: "Exit the interactive shell.",
		Usage:       "quit",
		Data:        (*shell).cmdQuit,
	})
	root.AddShortcut("s", "symbols")
	root.AddShortcut("r", "relocs")
	root.AddShortcut("x", "externs")
	root.AddShortcut("?", "help")
	root.AddShortcut("q", "quit")
	return root
}

var errQuit = fmt.Errorf("quit")

// selection bundles a looked-up command with the argument words that
// followed it on the input line, matching the shape this file's
// handlers are written against (cmd.Tree.LookupCommand returns these
// as separate values).
type selection struct {
	Command *cmd.Command
	Args    []string
}

// run drives the read-eval-print loop until the user quits or input
// ends.
func (s *shell) run() error {
	fmt.Fprintf(s.out, "ez80dump: %s (type 'help' for commands)\n", s.name)
	for {
		fmt.Fprint(s.out, "> ")
		s.out.Flush()
		if !s.in.Scan() {
			return nil
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		c, args, err := s.cmds.LookupCommand(line)
		switch {
		case err == cmd.ErrNotFound:
			fmt.Fprintln(s.out, "Command not found.")
			s.out.Flush()
			continue
		case err == cmd.ErrAmbiguous:
			fmt.Fprintln(s.out, "Command is ambiguous.")
			s.out.Flush()
			continue
		case err != nil:
			fmt.Fprintf(s.out, "ERROR: %v.\n", err)
			s.out.Flush()
			continue
		}
		if c == nil {
			continue
		}
		sel := selection{Command: c, Args: args}
		handler := sel.Command.Data.(func(*shell, selection) error)
		if err := handler(s, sel); err != nil {
			s.out.Flush()
			if err == errQuit {
				return nil
			}
			return err
		}
		s.out.Flush()
	}
}

func (s *shell) cmdSymbols(c selection) error {
	dumpSymbols(s.out, s.file)
	return nil
}

func (s *shell) cmdRelocs(c selection) error {
	dumpRelocs(s.out, s.file)
	return nil
}

func (s *shell) cmdExterns(c selection) error {
	dumpExterns(s.out, s.file)
	return nil
}

func (s *shell) cmdSection(c selection) error {
	if len(c.Args) != 1 {
		fmt.Fprintln(s.out, "usage: section <code|data>")
		return nil
	}
	var b []byte
	switch strings.ToLower(c.Args[0]) {
	case "code":
		b = s.file.Code
	case "data":
		b = s.file.Data
	default:
		fmt.Fprintln(s.out, "unknown section (expected code or data)")
		return nil
	}
	s.page(b, 0)
	return nil
}

func (s *shell) cmdHex(c selection) error {
	if len(c.Args) != 2 {
		fmt.Fprintln(s.out, "usage: hex <offset> <len>")
		return nil
	}
	off, err1 := strconv.ParseInt(c.Args[0], 0, 32)
	n, err2 := strconv.ParseInt(c.Args[1], 0, 32)
	if err1 != nil || err2 != nil || off < 0 || n < 0 {
		fmt.Fprintln(s.out, "invalid offset or length")
		return nil
	}
	b := s.file.Code
	if int(off) >= len(b) {
		fmt.Fprintln(s.out, "offset beyond code section")
		return nil
	}
	end := int(off) + int(n)
	if end > len(b) {
		end = len(b)
	}
	s.page(b[off:end], int(off))
	return nil
}

func (s *shell) cmdHelp(c selection) error {
	topic := strings.Join(c.Args, " ")
	cmd, _, err := s.cmds.LookupCommand(topic)
	if err != nil || cmd == nil {
		fmt.Fprintln(s.out, "commands: symbols, relocs, externs, section, hex, help, quit")
		return nil
	}
	fmt.Fprintln(s.out, cmd.Usage)
	fmt.Fprintln(s.out, cmd.Description)
	return nil
}

func (s *shell) cmdQuit(c selection) error {
	return errQuit
}

// page writes a hex dump of b (whose first byte is at file offset
// base) to the shell's output, pausing for a keypress between
// terminal-height-sized pages when stdout is a real terminal — the
// one place this tool exercises term's raw-mode control rather than
// just line-oriented bufio I/O.
func (s *shell) page(b []byte, base int) {
	const bytesPerLine = 16
	linesPerPage := 24
	if s.isTerm {
		if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && h > 2 {
			linesPerPage = h - 2
		}
	}
	bytesPerPage := linesPerPage * bytesPerLine

	for off := 0; off < len(b); off += bytesPerPage {
		end := off + bytesPerPage
		if end > len(b) {
			end = len(b)
		}
		hexDump(s.out, b[off:end], base+off, bytesPerLine)
		s.out.Flush()
		if end >= len(b) {
			return
		}
		if !s.isTerm {
			continue
		}
		fmt.Fprint(s.out, "-- more --")
		s.out.Flush()
		s.waitKey()
		fmt.Fprint(s.out, "\r           \r")
	}
}

// waitKey blocks for a single keypress in raw mode, restoring the
// terminal's prior state before returning.
func (s *shell) waitKey() {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRawInput(fd)
	if err != nil {
		// Not a terminal we can put in raw mode; fall back to a
		// line-buffered read so the pager still advances.
		s.in.Scan()
		return
	}
	defer term.Restore(fd, old)
	var buf [1]byte
	os.Stdin.Read(buf[:])
}
