package kinject

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/packages"
)

// InjectableSet holds the bindings discovered from injection markers, by type key.
type InjectableSet struct {
	bindings map[string][]*Binding
	scanned  map[string]bool
}

func NewInjectableSet() *InjectableSet {
	return &InjectableSet{
		bindings: make(map[string][]*Binding),
		scanned:  make(map[string]bool),
	}
}

// Add registers b as a binding for key.
func (s *InjectableSet) Add(key string, b *Binding) {
	s.bindings[key] = append(s.bindings[key], b)
}

// Lookup returns every marker binding for key.
func (s *InjectableSet) Lookup(key string) []*Binding {
	return s.bindings[key]
}

// Len returns the number of keys with at least one binding.
func (s *InjectableSet) Len() int {
	return len(s.bindings)
}

// Scanned reports whether the package with the given path was scanned already.
func (s *InjectableSet) Scanned(path string) bool {
	return s.scanned[path]
}

// ScanPackage adds the marked constructors of pkg to the set.
// pkg must have been loaded with syntax and type information.
func (s *InjectableSet) ScanPackage(pkg *packages.Package) error {
	if pkg.Types == nil || pkg.TypesInfo == nil {
		return fmt.Errorf("package %s has no type information", pkg.PkgPath)
	}
	if s.scanned[pkg.PkgPath] {
		return nil
	}
	s.scanned[pkg.PkgPath] = true

	sc := &scanner{
		set:  s,
		pkg:  pkg.Types,
		info: pkg.TypesInfo,
		fset: pkg.Fset,
	}

	var errs error
	for _, file := range pkg.Syntax {
		errs = multierr.Append(errs, sc.scanFile(file))
	}

	slog.Debug("scanned package for injection markers", "package", pkg.PkgPath, "bindings", s.Len())

	return errs
}

type scanner struct {
	set  *InjectableSet
	pkg  *types.Package
	info *types.Info
	fset *token.FileSet
}

func (sc *scanner) scanFile(file *ast.File) error {
	var errs error
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			errs = multierr.Append(errs, sc.scanFunc(decl))
		case *ast.GenDecl:
			errs = multierr.Append(errs, sc.scanGenDecl(decl))
		}
	}
	return errs
}

func (sc *scanner) scanFunc(decl *ast.FuncDecl) error {
	m, err := ParseMarker(decl.Doc)
	if err != nil {
		return sc.locate(err)
	}
	if m == nil {
		return nil
	}

	switch {
	case decl.Recv != nil:
		return sc.invalid(m, "a marked function must not have a receiver")
	case decl.Type.TypeParams != nil:
		return sc.invalid(m, "a marked function must not have type parameters")
	case m.New != "":
		return sc.invalid(m, "new= is only valid on type declarations")
	}

	fn, ok := sc.info.Defs[decl.Name].(*types.Func)
	if !ok {
		return sc.invalid(m, "cannot resolve function "+decl.Name.Name)
	}

	return sc.addConstructor(m, fn, nil)
}

func (sc *scanner) scanGenDecl(decl *ast.GenDecl) error {
	var errs error
	for _, spec := range decl.Specs {
		doc := decl.Doc
		var typeSpec *ast.TypeSpec
		switch spec := spec.(type) {
		case *ast.TypeSpec:
			typeSpec = spec
			if spec.Doc != nil {
				doc = spec.Doc
			}
		case *ast.ValueSpec:
			if spec.Doc != nil {
				doc = spec.Doc
			}
		}
		// a group comment belongs to the group, not to its members
		if doc == decl.Doc && len(decl.Specs) > 1 {
			continue
		}

		m, err := ParseMarker(doc)
		if err != nil {
			errs = multierr.Append(errs, sc.locate(err))
			continue
		}
		if m == nil {
			continue
		}

		if typeSpec == nil {
			errs = multierr.Append(errs, sc.invalid(m, "only functions and types can be marked"))
			continue
		}
		if typeSpec.TypeParams != nil {
			errs = multierr.Append(errs, sc.invalid(m, "a marked type must not have type parameters"))
			continue
		}

		typeName, ok := sc.info.Defs[typeSpec.Name].(*types.TypeName)
		if !ok {
			errs = multierr.Append(errs, sc.invalid(m, "cannot resolve type "+typeSpec.Name.Name))
			continue
		}

		ctorName := m.New
		if ctorName == "" {
			ctorName = "New" + typeName.Name()
		}
		fn, ok := sc.pkg.Scope().Lookup(ctorName).(*types.Func)
		if !ok {
			errs = multierr.Append(errs, sc.invalid(m, fmt.Sprintf("constructor %s of %s not found", ctorName, typeName.Name())))
			continue
		}

		errs = multierr.Append(errs, sc.addConstructor(m, fn, typeName))
	}
	return errs
}

func (sc *scanner) addConstructor(m *Marker, fn *types.Func, typeName *types.TypeName) error {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return sc.invalid(m, fn.Name()+" is not a function")
	}
	if sig.Variadic() {
		return sc.invalid(m, fn.Name()+" must not be variadic")
	}
	if sig.TypeParams() != nil {
		return sc.invalid(m, fn.Name()+" must not have type parameters")
	}

	results := sig.Results()
	returnsError := results.Len() == 2 && isErrorType(results.At(1).Type())
	if results.Len() == 0 || results.Len() > 2 || (results.Len() == 2 && !returnsError) || isErrorType(results.At(0).Type()) {
		return sc.invalid(m, fn.Name()+" must return T or (T, error)")
	}

	provided := results.At(0).Type()
	if typeName != nil && !constructs(provided, typeName) {
		return sc.invalid(m, fmt.Sprintf("%s does not return %s", fn.Name(), typeName.Name()))
	}

	requires := make([]types.Type, 0, sig.Params().Len())
	for v := range sig.Params().Variables() {
		requires = append(requires, v.Type())
	}

	source := fmt.Sprintf("%s (%s)", fn.FullName(), m.Origin)
	sc.set.Add(typeKey(provided), &Binding{
		Kind:         BindingProvider,
		Provides:     []types.Type{provided},
		Requires:     requires,
		ReturnsError: returnsError,
		Callee: &Callee{
			Pkg:  fn.Pkg(),
			Name: fn.Name(),
		},
		Scoped: m.Scoped,
		Origin: m.Origin,
		Source: source,
	})

	for _, as := range m.As {
		iface, err := sc.lookupInterface(m, as)
		if err != nil {
			return err
		}
		if !types.AssignableTo(provided, iface) {
			return sc.invalid(m, fmt.Sprintf("%s does not implement %s", types.TypeString(provided, nil), as))
		}

		sc.set.Add(typeKey(iface), &Binding{
			Kind:     BindingBind,
			Provides: []types.Type{iface},
			Target:   provided,
			Origin:   m.Origin,
			Source:   fmt.Sprintf("as=%s on %s", as, source),
		})
	}

	return nil
}

func (sc *scanner) lookupInterface(m *Marker, name string) (types.Type, error) {
	obj, ok := sc.pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, sc.invalid(m, fmt.Sprintf("interface %s not found in package %s", name, sc.pkg.Name()))
	}
	if !types.IsInterface(obj.Type()) {
		return nil, sc.invalid(m, name+" is not an interface")
	}
	return obj.Type(), nil
}

func (sc *scanner) invalid(m *Marker, reason string) error {
	return &InvalidAnnotationError{
		Pos:        m.Pos,
		Position:   sc.fset.Position(m.Pos),
		Annotation: m.Text,
		Reason:     reason,
	}
}

// locate fills in the position of errors returned by ParseMarker.
func (sc *scanner) locate(err error) error {
	if ie, ok := err.(*InvalidAnnotationError); ok && !ie.Position.IsValid() {
		ie.Position = sc.fset.Position(ie.Pos)
	}
	return err
}

// constructs reports whether t is the named type or a pointer to it.
func constructs(t types.Type, typeName *types.TypeName) bool {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	return types.Identical(t, typeName.Type())
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func typeKey(t types.Type) string {
	return types.TypeString(t, nil)
}
