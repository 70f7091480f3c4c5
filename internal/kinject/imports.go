package kinject

import (
	"fmt"
	"go/types"
	"slices"
	"strings"
)

// Import is an import of a generated file.
type Import struct {
	Name    string
	Path    string
	PkgName string
	used    bool
}

// Aliased reports whether the import needs an explicit name.
func (i *Import) Aliased() bool {
	return i.Name != i.PkgName
}

// ImportSet tracks the imports of one generated file. Imports of the directive file
// are declared up front so expressions copied from it keep working; every other
// package gets a local name that does not clash with anything in scope.
type ImportSet struct {
	self     string
	reserved map[string]bool
	byPath   map[string]*Import
	byName   map[string]*Import
}

// NewImportSet creates an import set for a file of pkg.
func NewImportSet(pkg *types.Package) *ImportSet {
	s := &ImportSet{
		reserved: make(map[string]bool),
		byPath:   make(map[string]*Import),
		byName:   make(map[string]*Import),
	}
	if pkg != nil {
		s.self = pkg.Path()
		if scope := pkg.Scope(); scope != nil {
			for _, name := range scope.Names() {
				s.reserved[name] = true
			}
		}
	}
	return s
}

// Declare registers an import of the directive file under its local name.
func (s *ImportSet) Declare(name, path, pkgName string) {
	if name == "" || name == "_" || name == "." {
		return
	}
	if _, ok := s.byPath[path]; ok {
		return
	}
	if _, ok := s.byName[name]; ok {
		return
	}

	imp := &Import{Name: name, Path: path, PkgName: pkgName}
	s.byPath[path] = imp
	s.byName[name] = imp
}

// MarkUsed marks the import of path as needed by the generated file.
func (s *ImportSet) MarkUsed(path string) {
	if imp, ok := s.byPath[path]; ok {
		imp.used = true
	}
}

// Use returns the name that refers to pkg in the generated file, adding an import
// when the package is not imported yet. It returns "" for the file's own package,
// so it can be used as a types.Qualifier.
func (s *ImportSet) Use(pkg *types.Package) string {
	if pkg == nil || pkg.Path() == s.self {
		return ""
	}

	if imp, ok := s.byPath[pkg.Path()]; ok {
		imp.used = true
		return imp.Name
	}

	base := pkg.Name()
	name := base
	for i := 2; s.taken(name); i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}

	imp := &Import{Name: name, Path: pkg.Path(), PkgName: base, used: true}
	s.byPath[imp.Path] = imp
	s.byName[imp.Name] = imp
	return name
}

// Reserve keeps name free for a parameter of a generated function. A declared import
// that no copied expression needs gives the name up and is renamed when it is used.
func (s *ImportSet) Reserve(name string) error {
	if imp, ok := s.byName[name]; ok {
		if imp.used {
			return fmt.Errorf("argument %s shadows the import of %q", name, imp.Path)
		}
		delete(s.byName, name)
		delete(s.byPath, imp.Path)
	}
	s.reserved[name] = true
	return nil
}

func (s *ImportSet) taken(name string) bool {
	if s.reserved[name] {
		return true
	}
	_, ok := s.byName[name]
	return ok
}

// Names returns every local package name known to the set.
func (s *ImportSet) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Used returns the imports the generated file needs, ordered by path.
func (s *ImportSet) Used() []*Import {
	used := make([]*Import, 0, len(s.byPath))
	for _, imp := range s.byPath {
		if imp.used {
			used = append(used, imp)
		}
	}
	slices.SortFunc(used, func(a, b *Import) int {
		return strings.Compare(a.Path, b.Path)
	})
	return used
}
