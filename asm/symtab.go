package asm

import (
	"fmt"

	"github.com/beevik/ez80toolchain/isa"
)

// symbol is one entry in the assembler's symbol table.
type symbol struct {
	name    string
	section isa.Section
	flags   isa.SymFlag
	value   int
	defined bool
}

// symtab is an exact-match, case-sensitive symbol table: a reference
// whose name happens to be a prefix of some other defined symbol must
// never resolve to that symbol, so lookup is a plain map, not a prefix
// index. Entries additionally live in a packed, append-only slice so
// that externs retain the stable ext_index relocations depend on.
type symtab struct {
	byName  map[string]*symbol
	entries []*symbol
	externs []*symbol // ordered, de-duplicated; index is ext_index
	scope   int       // incremented after each non-local label definition
}

func newSymtab() *symtab {
	return &symtab{byName: make(map[string]*symbol)}
}

// mangleLocal rewrites an '@'-prefixed local label into its
// scope-qualified form, name:scope, using the current scope counter.
func (t *symtab) mangleLocal(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return fmt.Sprintf("%s:%d", name, t.scope)
	}
	return name
}

// endScope closes the current local-label scope; called after each
// non-local label definition.
func (t *symtab) endScope() {
	t.scope++
}

func (t *symtab) find(name string) (*symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// add inserts a fresh, undefined Local symbol and returns it. The
// caller must already know name is absent.
func (t *symtab) add(name string) *symbol {
	s := &symbol{name: name, section: isa.SectAbs, flags: isa.SymLocal}
	t.entries = append(t.entries, s)
	t.byName[name] = s
	return s
}

// findOrAdd returns the existing symbol named name, or creates and
// returns a new undefined one.
func (t *symtab) findOrAdd(name string) *symbol {
	if s, ok := t.find(name); ok {
		return s
	}
	return t.add(name)
}

// define sets a symbol's section and value, creating it if absent.
// pass1 must be true during the assembler's first pass so that a
// redefinition can be flagged; in pass 2 the pass-1 value is
// authoritative and define only re-confirms it (silently, unless the
// symbol was never seen in pass 1, which is itself an assembler bug
// and not something this function is asked to detect).
func (t *symtab) define(name string, section isa.Section, value int, pass1 bool) (*symbol, error) {
	s, existed := t.find(name)
	if !existed {
		s = t.add(name)
	}
	if s.flags == isa.SymExtern {
		return nil, fmt.Errorf("symbol %q is declared extern and cannot be defined", name)
	}
	if pass1 && existed && s.defined {
		return nil, fmt.Errorf("symbol %q redefined", name)
	}
	s.section = section
	s.value = value
	s.defined = true
	return s, nil
}

func (t *symtab) setExport(name string) (*symbol, error) {
	if len(name) > 0 && name[0] == '@' {
		return nil, fmt.Errorf("local symbol %q cannot be exported", name)
	}
	s := t.findOrAdd(name)
	if s.flags == isa.SymExtern {
		return nil, fmt.Errorf("symbol %q is already declared extern", name)
	}
	s.flags = isa.SymExport
	return s, nil
}

func (t *symtab) setExtern(name string) (*symbol, error) {
	if len(name) > 0 && name[0] == '@' {
		return nil, fmt.Errorf("local symbol %q cannot be declared extern", name)
	}
	s, existed := t.find(name)
	if existed && s.defined {
		return nil, fmt.Errorf("symbol %q is already defined and cannot be declared extern", name)
	}
	if !existed {
		s = t.add(name)
	}
	s.flags = isa.SymExtern
	if !containsSymbol(t.externs, s) {
		t.externs = append(t.externs, s)
	}
	return s, nil
}

// externIndex returns the stable ext_index for an extern symbol.
func (t *symtab) externIndex(s *symbol) (int, bool) {
	for i, e := range t.externs {
		if e == s {
			return i, true
		}
	}
	return 0, false
}

func containsSymbol(list []*symbol, s *symbol) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
