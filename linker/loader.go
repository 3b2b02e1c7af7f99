package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

// LoadObjects reads each named object file in command-line order and
// marks it as unconditionally loaded.
func (c *Context) LoadObjects(paths []string) error {
	for _, path := range paths {
		f, err := readObjectFile(path)
		if err != nil {
			return err
		}
		c.objs = append(c.objs, &object{path: path, file: f, loaded: true})
		c.logf("loaded %s", path)
	}
	return nil
}

func readObjectFile(path string) (*objfile.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("linker: %w", err)
	}
	defer r.Close()
	f, err := objfile.Read(r)
	if err != nil {
		return nil, fmt.Errorf("linker: %s: %w", path, err)
	}
	return f, nil
}

// ResolveLibraries finds the archive file backing each -l request and
// scans it with objfile.ScanArchive, recording its members without
// decoding any object's code or data. Libraries named directly (a bare
// path ending in a library the caller already resolved) are scanned
// the same way via AddLibraryPath.
func (c *Context) ResolveLibraries(libNames []string) error {
	for _, name := range libNames {
		path, err := c.findLibrary(name)
		if err != nil {
			return err
		}
		if err := c.AddLibraryPath(path); err != nil {
			return err
		}
	}
	return nil
}

// AddLibraryPath scans the archive at path and registers its members
// as candidates for selective loading.
func (c *Context) AddLibraryPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("linker: %w", err)
	}
	defer f.Close()
	members, err := objfile.ScanArchive(f)
	if err != nil {
		return fmt.Errorf("linker: %s: %w", path, err)
	}
	c.libs = append(c.libs, libSource{path: path, members: members, scanned: true})
	c.logf("scanned library %s (%d members)", path, len(members))
	return nil
}

// findLibrary searches each -L directory for lib<name>.a; if none
// contain it, the literal name is tried as a path, matching the
// linker's documented -l semantics.
func (c *Context) findLibrary(name string) (string, error) {
	libname := "lib" + name + ".a"
	for _, dir := range c.LibDirs {
		candidate := filepath.Join(dir, libname)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	if fileExists(name) {
		return name, nil
	}
	return "", fmt.Errorf("linker: cannot find library %q", name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// undefinedExternals computes the set of external names referenced by
// loaded objects that are not yet satisfied by any loaded object's
// exports.
func (c *Context) undefinedExternals() map[string]bool {
	defined := make(map[string]bool)
	for _, o := range c.objs {
		if !o.loaded {
			continue
		}
		for _, s := range o.file.Symbols {
			if s.Flags == isa.SymExport {
				defined[strings.ToLower(s.Name)] = true
			}
		}
	}

	undef := make(map[string]bool)
	for _, o := range c.objs {
		if !o.loaded {
			continue
		}
		for _, e := range o.file.Externs {
			key := strings.ToLower(e.Name)
			if !defined[key] {
				undef[key] = true
			}
		}
	}
	return undef
}

// LoadFromLibraries performs the selective load described in §4.8:
// repeatedly scans not-yet-loaded library members for one satisfying
// any currently-undefined external, loading it (which may introduce
// new undefineds), until a full pass loads nothing. Termination is
// guaranteed because each member is loaded at most once.
func (c *Context) LoadFromLibraries() error {
	for {
		undef := c.undefinedExternals()
		if len(undef) == 0 {
			return nil
		}

		loadedAny := false
		for li := range c.libs {
			lib := &c.libs[li]
			for mi := range lib.members {
				m := &lib.members[mi]
				if memberLoaded(lib.path, m, c.objs) {
					continue
				}
				if !memberSatisfies(m, undef) {
					continue
				}
				if err := c.loadMember(lib.path, *m); err != nil {
					return err
				}
				loadedAny = true
			}
		}
		if !loadedAny {
			return nil
		}
	}
}

// memberLoaded reports whether member m from library libPath has
// already been loaded into objs.
func memberLoaded(libPath string, m *objfile.Member, objs []*object) bool {
	for _, o := range objs {
		if o.loaded && o.lib == libPath && o.memberOffset == m.Offset {
			return true
		}
	}
	return false
}

func memberSatisfies(m *objfile.Member, undef map[string]bool) bool {
	for _, name := range m.Exports {
		if undef[strings.ToLower(name)] {
			return true
		}
	}
	return false
}

func (c *Context) loadMember(libPath string, m objfile.Member) error {
	f, err := os.Open(libPath)
	if err != nil {
		return fmt.Errorf("linker: %w", err)
	}
	defer f.Close()
	obj, err := objfile.ReadMember(f, m)
	if err != nil {
		return fmt.Errorf("linker: %s: %w", libPath, err)
	}
	c.objs = append(c.objs, &object{
		path:         fmt.Sprintf("%s(%#x)", libPath, m.Offset),
		file:         obj,
		lib:          libPath,
		loaded:       true,
		memberOffset: m.Offset,
	})
	c.logf("loaded %s from %s", c.objs[len(c.objs)-1].path, libPath)
	return nil
}
