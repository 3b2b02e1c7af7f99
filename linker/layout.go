package linker

import (
	"fmt"
	"strings"

	"github.com/beevik/ez80toolchain/isa"
)

// linkerSymbolNames are the six addresses injected after layout, giving
// startup code the bounds of each section without a separate map-file
// round trip.
var linkerSymbolNames = []string{
	"__low_code", "__len_code",
	"__low_data", "__len_data",
	"__low_bss", "__len_bss",
}

// Layout assigns absolute base addresses to every loaded object's
// sections (code, then data, then bss, in object order) and resolves
// every global symbol to an absolute address. It must run after
// loading has stabilized.
func (c *Context) Layout() error {
	addr := c.BaseAddr
	for _, o := range c.objs {
		o.code = addr
		addr += o.file.Header.CodeSize
	}
	c.totalCode = addr - c.BaseAddr

	for _, o := range c.objs {
		o.data = addr
		addr += o.file.Header.DataSize
	}
	c.totalData = addr - c.BaseAddr - c.totalCode

	for _, o := range c.objs {
		o.bss = addr
		addr += o.file.Header.BssSize
	}
	c.totalBss = addr - c.BaseAddr - c.totalCode - c.totalData

	if err := c.resolveSymbols(); err != nil {
		return err
	}
	c.injectLinkerSymbols()
	return nil
}

// resolveSymbols builds the global symbol table from every loaded
// object's exports, converting each section-relative value to an
// absolute address via the base assigned in Layout. Duplicate exports
// across objects are a hard error.
func (c *Context) resolveSymbols() error {
	for _, o := range c.objs {
		base := func(sect isa.Section) int {
			switch sect {
			case isa.SectCode:
				return o.code
			case isa.SectData:
				return o.data
			case isa.SectBss:
				return o.bss
			default:
				return 0
			}
		}
		for _, s := range o.file.Symbols {
			if s.Flags != isa.SymExport {
				continue
			}
			key := strings.ToLower(s.Name)
			if existing, ok := c.syms[key]; ok {
				return fmt.Errorf("linker: duplicate export %q in %s and %s",
					s.Name, existing.obj.path, o.path)
			}
			c.syms[key] = &globalSymbol{
				name:    s.Name,
				section: s.Section,
				value:   base(s.Section) + s.Value,
				obj:     o,
			}
		}
	}
	return nil
}

func (c *Context) injectLinkerSymbols() {
	values := []int{
		c.BaseAddr, c.totalCode,
		c.BaseAddr + c.totalCode, c.totalData,
		c.BaseAddr + c.totalCode + c.totalData, c.totalBss,
	}
	for i, name := range linkerSymbolNames {
		c.syms[strings.ToLower(name)] = &globalSymbol{
			name:    name,
			section: isa.SectAbs,
			value:   values[i],
		}
	}
}

// lookupSymbol performs the linker's case-insensitive cross-object
// symbol lookup.
func (c *Context) lookupSymbol(name string) (*globalSymbol, bool) {
	s, ok := c.syms[strings.ToLower(name)]
	return s, ok
}
