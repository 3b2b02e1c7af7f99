package linker

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// MapObject describes one loaded object's section bases within a
// MapFile, mirroring the per-object section-base bookkeeping Layout
// performs internally.
type MapObject struct {
	Path     string `json:"path"`
	CodeBase int    `json:"codeBase"`
	CodeSize int    `json:"codeSize"`
	DataBase int    `json:"dataBase"`
	DataSize int    `json:"dataSize"`
	BssBase  int    `json:"bssBase"`
	BssSize  int    `json:"bssSize"`
}

// MapSymbol is one resolved global symbol's final absolute address.
type MapSymbol struct {
	Name    string `json:"name"`
	Address int    `json:"address"`
	Section string `json:"section"`
	Object  string `json:"object"`
}

// MapFile is the requested -m output: memory layout, per-object
// section bases and sizes, and every global symbol with its origin.
// It is the linker's analogue of the teacher's SourceMap — an
// io.Reader/io.Writer-shaped side artifact — generalized to carry
// linker rather than assembler output.
type MapFile struct {
	BaseAddr  int         `json:"baseAddr"`
	TotalCode int         `json:"totalCode"`
	TotalData int         `json:"totalData"`
	TotalBss  int         `json:"totalBss"`
	Objects   []MapObject `json:"objects"`
	Symbols   []MapSymbol `json:"symbols"`
}

// buildMapFile assembles a MapFile from the context's post-Layout
// state.
func (c *Context) buildMapFile() *MapFile {
	m := &MapFile{
		BaseAddr:  c.BaseAddr,
		TotalCode: c.totalCode,
		TotalData: c.totalData,
		TotalBss:  c.totalBss,
	}
	for _, o := range c.objs {
		m.Objects = append(m.Objects, MapObject{
			Path:     o.path,
			CodeBase: o.code,
			CodeSize: o.file.Header.CodeSize,
			DataBase: o.data,
			DataSize: o.file.Header.DataSize,
			BssBase:  o.bss,
			BssSize:  o.file.Header.BssSize,
		})
	}
	for _, s := range c.syms {
		m.Symbols = append(m.Symbols, MapSymbol{
			Name:    s.name,
			Address: s.value,
			Section: s.section.String(),
			Object:  objectPath(s.obj),
		})
	}
	sort.Slice(m.Symbols, func(i, j int) bool { return m.Symbols[i].Address < m.Symbols[j].Address })
	return m
}

func objectPath(o *object) string {
	if o == nil {
		return "(linker)"
	}
	return o.path
}

// WriteText writes the human-readable table form of the map file.
func (m *MapFile) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "base=%#06x  code=%#06x(%d)  data=%#06x(%d)  bss=%#06x(%d)\n\n",
		m.BaseAddr, m.BaseAddr, m.TotalCode, m.BaseAddr+m.TotalCode, m.TotalData,
		m.BaseAddr+m.TotalCode+m.TotalData, m.TotalBss); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Objects:\n"); err != nil {
		return err
	}
	for _, o := range m.Objects {
		if _, err := fmt.Fprintf(w, "  %-40s code=%#06x(%d) data=%#06x(%d) bss=%#06x(%d)\n",
			o.Path, o.CodeBase, o.CodeSize, o.DataBase, o.DataSize, o.BssBase, o.BssSize); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nSymbols:\n"); err != nil {
		return err
	}
	for _, s := range m.Symbols {
		if _, err := fmt.Fprintf(w, "  %#06x  %-4s  %-32s  %s\n", s.Address, s.Section, s.Name, s.Object); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the machine-readable form, matching the teacher's
// SourceMap.WriteTo json.Marshal pattern.
func (m *MapFile) WriteJSON(w io.Writer) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
