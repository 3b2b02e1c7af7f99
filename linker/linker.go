package linker

import (
	"fmt"
	"io"
	"os"
)

// Config is the fully-parsed command line for one Link invocation.
type Config struct {
	Objects  []string
	OutPath  string
	BaseAddr int
	MapPath  string
	LibDirs  []string
	LibNames []string
	Verbose  bool
}

// Link runs the complete load → layout → relocate → write pipeline
// described by the configuration and returns the resulting Context
// (retained for its warnings and, if requested, its map file).
func Link(cfg Config) (*Context, error) {
	var options Option
	if cfg.Verbose {
		options |= Verbose
	}
	c := NewContext(cfg.BaseAddr, options)
	c.LibDirs = cfg.LibDirs
	c.LibNames = cfg.LibNames

	if err := c.LoadObjects(cfg.Objects); err != nil {
		return nil, err
	}
	if err := c.ResolveLibraries(cfg.LibNames); err != nil {
		return nil, err
	}
	if err := c.LoadFromLibraries(); err != nil {
		return nil, err
	}
	if err := c.Layout(); err != nil {
		return nil, err
	}
	image, err := c.Relocate()
	if err != nil {
		return nil, err
	}

	out, err := os.Create(cfg.OutPath)
	if err != nil {
		return nil, fmt.Errorf("linker: %w", err)
	}
	defer out.Close()
	if _, err := out.Write(image); err != nil {
		return nil, fmt.Errorf("linker: %w", err)
	}

	if cfg.MapPath != "" {
		if err := c.writeMapFile(cfg.MapPath); err != nil {
			return nil, err
		}
	}

	for _, w := range c.warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	return c, nil
}

// writeMapFile emits both the human-readable table and, alongside it
// under a .json suffix, the machine-readable form — the same
// two-artifact habit the teacher's AssembleFile/SourceMap.WriteTo pair
// follows for a .bin plus a .map.json.
func (c *Context) writeMapFile(path string) error {
	m := c.buildMapFile()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("linker: %w", err)
	}
	defer f.Close()
	if err := m.WriteText(f); err != nil {
		return fmt.Errorf("linker: %w", err)
	}

	jf, err := os.Create(path + ".json")
	if err != nil {
		return fmt.Errorf("linker: %w", err)
	}
	defer jf.Close()
	return m.WriteJSON(jf)
}

// writeMapFileTo is exposed for tests that want to inspect the map
// output without touching the filesystem.
func (c *Context) writeMapFileTo(w io.Writer) error {
	return c.buildMapFile().WriteText(w)
}
