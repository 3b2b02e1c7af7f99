package linker

import (
	"fmt"

	"github.com/beevik/ez80toolchain/internal/bitio"
	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

// Relocate patches every loaded object's code and data against the
// resolved global symbol table and returns the concatenated
// code-then-data image. BSS contributes no bytes: its space is
// implicit in the running image, reserved by the __low_bss/__len_bss
// symbols injected during Layout.
//
// Each object is visited once: its code and data are copied into the
// output buffer at the offsets Layout assigned, its string and extern
// tables are consulted in memory, and every relocation record is
// patched in place.
func (c *Context) Relocate() ([]byte, error) {
	image := make([]byte, c.totalCode+c.totalData)

	for _, o := range c.objs {
		codeOff := o.code - c.BaseAddr
		copy(image[codeOff:codeOff+len(o.file.Code)], o.file.Code)

		dataOff := c.totalCode + (o.data - c.BaseAddr - c.totalCode)
		copy(image[dataOff:dataOff+len(o.file.Data)], o.file.Data)

		for _, r := range o.file.Relocs {
			if err := c.patch(image, o, r); err != nil {
				return nil, err
			}
		}
	}

	return image, nil
}

// patch applies one relocation record against the output image,
// following §4.10 exactly: resolve the target address (external
// lookup, or the object's own section base), add it to the
// pre-relocation section-relative value already sitting at the patch
// site, and write the 24-bit little-endian result back. Patch sites
// outside the section's byte range are silently skipped.
func (c *Context) patch(image []byte, o *object, r objfile.Reloc) error {
	var siteOff int
	var siteLen int
	switch r.Section {
	case isa.SectCode:
		siteOff = o.code - c.BaseAddr + r.Offset
		siteLen = len(o.file.Code)
		if r.Offset < 0 || r.Offset+3 > siteLen {
			return nil
		}
	case isa.SectData:
		siteOff = c.totalCode + (o.data - c.BaseAddr - c.totalCode) + r.Offset
		siteLen = len(o.file.Data)
		if r.Offset < 0 || r.Offset+3 > siteLen {
			return nil
		}
	default:
		return nil
	}

	targetAddr, err := c.resolveTarget(o, r)
	if err != nil {
		return err
	}

	existing := bitio.Get24(image[siteOff : siteOff+3])
	bitio.Put24(image[siteOff:siteOff+3], isa.Mask24(existing+targetAddr))
	return nil
}

func (c *Context) resolveTarget(o *object, r objfile.Reloc) (int, error) {
	if r.TargetSect == isa.TargetExternal {
		if r.ExtIndex < 0 || r.ExtIndex >= len(o.file.Externs) {
			return 0, fmt.Errorf("linker: %s: relocation references out-of-range extern %d", o.path, r.ExtIndex)
		}
		name := o.file.Externs[r.ExtIndex].Name
		sym, ok := c.lookupSymbol(name)
		if !ok {
			return 0, fmt.Errorf("linker: undefined symbol %q (referenced from %s)", name, o.path)
		}
		return sym.value, nil
	}

	switch r.TargetSect {
	case isa.TargetCode:
		return o.code, nil
	case isa.TargetData:
		return o.data, nil
	case isa.TargetBss:
		return o.bss, nil
	default:
		return 0, fmt.Errorf("linker: %s: relocation has unknown target section %d", o.path, r.TargetSect)
	}
}
