package kinject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/packages"

	queuecoll "github.com/mazrean/kinject/internal/pkg/collection"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes |
	packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule

// ParsedFile is everything the generator needs to know about one directive file.
type ParsedFile struct {
	Filename    string
	MetaData    *MetaData
	Components  []*ComponentDirective
	Injectables *InjectableSet
}

// Parser loads a directive file with its package and finds kinject.Component calls.
// A Parser is not safe for concurrent use.
type Parser struct {
	fset *token.FileSet
}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// ParseFile parses filename and returns its component directives. A file that does
// not import kinject yields a ParsedFile without components.
func (p *Parser) ParseFile(ctx context.Context, filename string) (*ParsedFile, error) {
	absFilename, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", filename, err)
	}

	clause, err := parser.ParseFile(token.NewFileSet(), absFilename, nil, parser.PackageClauseOnly)
	if err != nil {
		return nil, fmt.Errorf("parse file %s: %w", filename, err)
	}

	pkg, err := p.loadPackage(ctx, absFilename, clause.Name.Name)
	if err != nil {
		return nil, fmt.Errorf("load package of %s: %w", filename, err)
	}

	parsed := &ParsedFile{
		Filename:    absFilename,
		Injectables: NewInjectableSet(),
	}

	file := findSyntax(pkg, absFilename)
	if file == nil {
		return nil, fmt.Errorf("file %s not found in package %s", filename, pkg.PkgPath)
	}

	if !importsKinject(file) {
		slog.Debug("kinject package is not imported", "file", filename)
		return parsed, nil
	}

	parsed.MetaData = &MetaData{
		Package: pkg.Types,
		Imports: NewImportSet(pkg.Types),
	}
	declareFileImports(parsed.MetaData.Imports, file, pkg.TypesInfo)

	dp := &directiveParser{
		fset:    p.fset,
		pkg:     pkg.Types,
		info:    pkg.TypesInfo,
		imports: parsed.MetaData.Imports,
		vars:    packageVarInits(pkg),
	}
	components, err := dp.findComponents(file)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return parsed, nil
	}
	parsed.Components = components

	if err := parsed.Injectables.ScanPackage(pkg); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pkg.PkgPath, err)
	}
	if err := p.scanModuleImports(ctx, filepath.Dir(absFilename), pkg, parsed.Injectables); err != nil {
		return nil, err
	}

	return parsed, nil
}

func (p *Parser) config(ctx context.Context, dir string) *packages.Config {
	return &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
		Fset:    p.fset,
	}
}

// loadPackage loads the package of filename. The file's previous output is replaced
// by an empty file so stale generated code cannot break type checking.
func (p *Parser) loadPackage(ctx context.Context, filename, pkgName string) (*packages.Package, error) {
	cfg := p.config(ctx, filepath.Dir(filename))
	cfg.Overlay = map[string][]byte{
		OutputFileName(filename): []byte("package " + pkgName + "\n"),
	}

	pkgs, err := packages.Load(cfg, "file="+filename)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	for _, pkg := range pkgs {
		if findSyntax(pkg, filename) == nil {
			continue
		}
		logPackageErrors(pkg)
		if pkg.Types == nil || pkg.TypesInfo == nil {
			return nil, fmt.Errorf("package %s has no type information", pkg.PkgPath)
		}
		return pkg, nil
	}

	return nil, errors.New("file is not part of any loaded package")
}

// scanModuleImports scans every package of the same module that root imports,
// directly or not, for injection markers.
func (p *Parser) scanModuleImports(ctx context.Context, dir string, root *packages.Package, set *InjectableSet) error {
	if root.Module == nil || root.Module.Path == "" {
		slog.Debug("package is not in a module, only scanning itself", "package", root.PkgPath)
		return nil
	}
	modulePath := root.Module.Path

	seen := map[string]bool{root.PkgPath: true}
	queue := queuecoll.NewQueue[string]()
	enqueue := func(pkg *types.Package) {
		for _, imp := range pkg.Imports() {
			path := imp.Path()
			if seen[path] || !inModule(path, modulePath) {
				continue
			}
			seen[path] = true
			queue.Push(path)
		}
	}
	enqueue(root.Types)

	var errs error
	for queue.Len() > 0 {
		batch := make([]string, 0, queue.Len())
		queue.Drain(func(path string) bool {
			batch = append(batch, path)
			return true
		})

		slog.Debug("loading module packages", "packages", batch)

		pkgs, err := packages.Load(p.config(ctx, dir), batch...)
		if err != nil {
			return fmt.Errorf("load packages: %w", err)
		}

		for _, pkg := range pkgs {
			logPackageErrors(pkg)
			if pkg.Types == nil || pkg.TypesInfo == nil {
				continue
			}
			errs = multierr.Append(errs, set.ScanPackage(pkg))
			enqueue(pkg.Types)
		}
	}

	return errs
}

func inModule(path, modulePath string) bool {
	return path == modulePath || strings.HasPrefix(path, modulePath+"/")
}

func logPackageErrors(pkg *packages.Package) {
	for _, err := range pkg.Errors {
		// expected while the generated functions are missing or stale
		slog.Debug("package error", "package", pkg.PkgPath, "error", err)
	}
}

func findSyntax(pkg *packages.Package, filename string) *ast.File {
	for i, f := range pkg.Syntax {
		if f == nil || i >= len(pkg.CompiledGoFiles) {
			continue
		}
		abs, err := filepath.Abs(pkg.CompiledGoFiles[i])
		if err != nil {
			continue
		}
		if abs == filename {
			return f
		}
	}
	return nil
}

func importsKinject(file *ast.File) bool {
	for _, imp := range file.Imports {
		if path, err := strconv.Unquote(imp.Path.Value); err == nil && path == kinjectPkgPath {
			return true
		}
	}
	return false
}

func declareFileImports(set *ImportSet, file *ast.File, info *types.Info) {
	for _, imp := range file.Imports {
		var obj types.Object
		if imp.Name != nil {
			obj = info.Defs[imp.Name]
		} else {
			obj = info.Implicits[imp]
		}

		pkgName, ok := obj.(*types.PkgName)
		if !ok {
			continue
		}
		set.Declare(pkgName.Name(), pkgName.Imported().Path(), pkgName.Imported().Name())
	}
}

// packageVarInits maps package level variables to their initialiser expressions.
func packageVarInits(pkg *packages.Package) map[*types.Var]ast.Expr {
	inits := make(map[*types.Var]ast.Expr)
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}
			for _, spec := range gen.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || len(vs.Values) != len(vs.Names) {
					continue
				}
				for i, name := range vs.Names {
					if v, ok := pkg.TypesInfo.Defs[name].(*types.Var); ok {
						inits[v] = vs.Values[i]
					}
				}
			}
		}
	}
	return inits
}

type directiveParser struct {
	fset    *token.FileSet
	pkg     *types.Package
	info    *types.Info
	imports *ImportSet
	vars    map[*types.Var]ast.Expr
}

func (dp *directiveParser) findComponents(file *ast.File) ([]*ComponentDirective, error) {
	var (
		components []*ComponentDirective
		errs       error
	)

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		name, typeArgs := dp.callee(call.Fun)
		if name != componentFuncName {
			return true
		}

		component, err := dp.parseComponent(call, typeArgs)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", dp.fset.Position(call.Pos()), err))
			return false
		}

		slog.Debug("found component directive", "name", component.Name, "type", component.Type)
		components = append(components, component)
		return false
	})

	return components, errs
}

// callee returns the name and type arguments of a kinject function called by fun.
func (dp *directiveParser) callee(fun ast.Expr) (string, *types.TypeList) {
	switch f := fun.(type) {
	case *ast.IndexExpr:
		fun = f.X
	case *ast.IndexListExpr:
		fun = f.X
	}

	var ident *ast.Ident
	switch f := fun.(type) {
	case *ast.SelectorExpr:
		ident = f.Sel
	case *ast.Ident:
		ident = f
	default:
		return "", nil
	}

	fn, ok := dp.info.Uses[ident].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != kinjectPkgPath {
		return "", nil
	}

	return fn.Name(), dp.info.Instances[ident].TypeArgs
}

func (dp *directiveParser) parseComponent(call *ast.CallExpr, typeArgs *types.TypeList) (*ComponentDirective, error) {
	if typeArgs == nil || typeArgs.Len() != 1 {
		return nil, errors.New("kinject.Component requires exactly one type argument")
	}
	if len(call.Args) == 0 {
		return nil, errors.New("kinject.Component requires a function name")
	}
	if call.Ellipsis.IsValid() {
		return nil, errors.New("kinject.Component does not accept a spread provider list")
	}

	name, err := dp.constantString(call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("function name: %w", err)
	}
	if !token.IsIdentifier(name) {
		return nil, fmt.Errorf("function name %q is not an identifier", name)
	}

	component := &ComponentDirective{
		Name: name,
		Type: typeArgs.At(0),
		Pos:  dp.fset.Position(call.Pos()),
	}

	seen := make(map[*types.Var]bool)
	for _, arg := range call.Args[1:] {
		if err := dp.parseProvider(arg, component, seen); err != nil {
			return nil, err
		}
	}

	return component, nil
}

func (dp *directiveParser) parseProvider(expr ast.Expr, component *ComponentDirective, seen map[*types.Var]bool) error {
	expr = ast.Unparen(expr)

	switch e := expr.(type) {
	case *ast.CallExpr:
		name, typeArgs := dp.callee(e.Fun)
		switch name {
		case provideFuncName:
			b, err := dp.parseProvide(e)
			if err != nil {
				return err
			}
			component.Bindings = append(component.Bindings, b)
			return nil
		case valueFuncName:
			b, err := dp.parseValue(e, typeArgs)
			if err != nil {
				return err
			}
			component.Bindings = append(component.Bindings, b)
			return nil
		case bindFuncName:
			b, err := dp.parseBind(e, typeArgs)
			if err != nil {
				return err
			}
			component.Bindings = append(component.Bindings, b)
			return nil
		case scopedFuncName:
			b, err := dp.parseProvide(e)
			if err != nil {
				return err
			}
			b.Scoped = true
			component.Bindings = append(component.Bindings, b)
			return nil
		case intoSliceFuncName:
			return dp.parseIntoSlice(e, component)
		case intoMapFuncName:
			return dp.parseIntoMap(e, typeArgs, component)
		case argFuncName:
			b, err := dp.parseArg(e, typeArgs)
			if err != nil {
				return err
			}
			component.Args = append(component.Args, b)
			return nil
		case setFuncName:
			if e.Ellipsis.IsValid() {
				return errors.New("kinject.Set does not accept a spread provider list")
			}
			for _, arg := range e.Args {
				if err := dp.parseProvider(arg, component, seen); err != nil {
					return err
				}
			}
			return nil
		case componentFuncName:
			return errors.New("kinject.Component cannot be used as a provider")
		}
	case *ast.Ident, *ast.SelectorExpr:
		v, ok := dp.referencedVar(e)
		if !ok {
			break
		}
		init, ok := dp.vars[v]
		if !ok {
			return fmt.Errorf("provider variable %s must be declared in package %s", v.Name(), dp.pkg.Path())
		}
		if seen[v] {
			return fmt.Errorf("provider variable %s refers to itself", v.Name())
		}
		seen[v] = true
		defer delete(seen, v)

		return dp.parseProvider(init, component, seen)
	}

	return fmt.Errorf("unsupported provider expression %s", dp.render(expr))
}

func (dp *directiveParser) referencedVar(expr ast.Expr) (*types.Var, bool) {
	var ident *ast.Ident
	switch e := expr.(type) {
	case *ast.Ident:
		ident = e
	case *ast.SelectorExpr:
		ident = e.Sel
	}
	v, ok := dp.info.Uses[ident].(*types.Var)
	return v, ok
}

func (dp *directiveParser) parseProvide(call *ast.CallExpr) (*Binding, error) {
	if len(call.Args) != 1 {
		name, _ := dp.callee(call.Fun)
		return nil, fmt.Errorf("kinject.%s requires exactly one argument", name)
	}
	return dp.parseFunc(call.Args[0])
}

// parseFunc turns a constructor expression into a provider binding.
func (dp *directiveParser) parseFunc(fnExpr ast.Expr) (*Binding, error) {
	fnType := dp.info.TypeOf(fnExpr)
	if fnType == nil {
		return nil, fmt.Errorf("cannot type check provider %s", dp.render(fnExpr))
	}
	sig, ok := fnType.Underlying().(*types.Signature)
	if !ok {
		return nil, fmt.Errorf("kinject.Provide argument %s is not a function", dp.render(fnExpr))
	}
	if sig.Variadic() {
		return nil, fmt.Errorf("provider %s must not be variadic", dp.render(fnExpr))
	}

	exprText, err := dp.portable(fnExpr)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		Kind:   BindingProvider,
		Callee: &Callee{Expr: exprText},
		Source: fmt.Sprintf("%s at %s", exprText, dp.shortPosition(fnExpr.Pos())),
	}

	for v := range sig.Params().Variables() {
		b.Requires = append(b.Requires, v.Type())
	}

	results := sig.Results()
	for i := range results.Len() {
		t := results.At(i).Type()
		if isErrorType(t) {
			if i != results.Len()-1 {
				return nil, fmt.Errorf("provider %s may only return error as its last result", exprText)
			}
			b.ReturnsError = true
			continue
		}
		b.Provides = append(b.Provides, t)
	}
	if len(b.Provides) == 0 {
		return nil, fmt.Errorf("provider %s must return a value", exprText)
	}

	return b, nil
}

func (dp *directiveParser) parseIntoSlice(call *ast.CallExpr, component *ComponentDirective) error {
	if len(call.Args) != 1 {
		return errors.New("kinject.IntoSlice requires exactly one argument")
	}

	el, err := dp.parseContribution(call.Args[0])
	if err != nil {
		return err
	}
	el.Source = fmt.Sprintf("kinject.IntoSlice(%s) at %s", el.Callee.Expr, dp.shortPosition(call.Pos()))

	collector := dp.collector(component, BindingSlice, types.NewSlice(el.Provides[0]))
	collector.Elements = append(collector.Elements, el)
	return nil
}

func (dp *directiveParser) parseIntoMap(call *ast.CallExpr, typeArgs *types.TypeList, component *ComponentDirective) error {
	if len(call.Args) != 2 || typeArgs == nil || typeArgs.Len() != 2 {
		return errors.New("kinject.IntoMap requires a key and a function")
	}
	keyExpr := call.Args[0]

	key, err := dp.portable(keyExpr)
	if err != nil {
		return err
	}
	el, err := dp.parseContribution(call.Args[1])
	if err != nil {
		return err
	}
	el.MapKey = key
	el.Source = fmt.Sprintf("kinject.IntoMap(%s, %s) at %s", key, el.Callee.Expr, dp.shortPosition(call.Pos()))
	if tv := dp.info.Types[keyExpr]; tv.Value != nil {
		el.mapKeyValue = tv.Value.ExactString()
	}

	collector := dp.collector(component, BindingMap, types.NewMap(typeArgs.At(0), el.Provides[0]))
	for _, other := range collector.Elements {
		if el.mapKeyValue != "" && other.mapKeyValue == el.mapKeyValue {
			return fmt.Errorf("map key %s is contributed by both %s and %s", key, other.Source, el.Source)
		}
	}
	collector.Elements = append(collector.Elements, el)
	return nil
}

// parseContribution parses the constructor of a slice or map element.
func (dp *directiveParser) parseContribution(fnExpr ast.Expr) (*Binding, error) {
	el, err := dp.parseFunc(fnExpr)
	if err != nil {
		return nil, err
	}
	if len(el.Provides) != 1 {
		return nil, fmt.Errorf("contribution %s must return exactly one value", el.Callee.Expr)
	}
	return el, nil
}

// collector returns the binding that gathers contributions of type t, adding it
// to the component on first use.
func (dp *directiveParser) collector(component *ComponentDirective, kind BindingKind, t types.Type) *Binding {
	for _, b := range component.Bindings {
		if b.Kind == kind && types.Identical(b.Provides[0], t) {
			return b
		}
	}

	b := &Binding{
		Kind:     kind,
		Provides: []types.Type{t},
		Source:   "contributions to " + typeKey(t),
	}
	component.Bindings = append(component.Bindings, b)
	return b
}

func (dp *directiveParser) parseValue(call *ast.CallExpr, typeArgs *types.TypeList) (*Binding, error) {
	if len(call.Args) != 1 || typeArgs == nil || typeArgs.Len() != 1 {
		return nil, errors.New("kinject.Value requires exactly one argument")
	}
	valueExpr := call.Args[0]
	t := typeArgs.At(0)

	exprText, err := dp.portable(valueExpr)
	if err != nil {
		return nil, err
	}

	// constants keep the declared type only through an explicit declaration
	tv := dp.info.Types[valueExpr]
	typed := tv.Value == nil && tv.Type != nil && types.Identical(tv.Type, t)

	return &Binding{
		Kind:       BindingValue,
		Provides:   []types.Type{t},
		ValueExpr:  exprText,
		ValueTyped: typed,
		Source:     fmt.Sprintf("kinject.Value(%s) at %s", exprText, dp.shortPosition(valueExpr.Pos())),
	}, nil
}

func (dp *directiveParser) parseBind(call *ast.CallExpr, typeArgs *types.TypeList) (*Binding, error) {
	if typeArgs == nil || typeArgs.Len() != 2 {
		return nil, errors.New("kinject.Bind requires two type arguments")
	}
	iface, target := typeArgs.At(0), typeArgs.At(1)
	if !types.AssignableTo(target, iface) {
		return nil, fmt.Errorf("kinject.Bind: %s is not assignable to %s", typeKey(target), typeKey(iface))
	}

	return &Binding{
		Kind:     BindingBind,
		Provides: []types.Type{iface},
		Target:   target,
		Source:   fmt.Sprintf("kinject.Bind[%s, %s] at %s", typeKey(iface), typeKey(target), dp.shortPosition(call.Pos())),
	}, nil
}

func (dp *directiveParser) parseArg(call *ast.CallExpr, typeArgs *types.TypeList) (*Binding, error) {
	if len(call.Args) != 1 || typeArgs == nil || typeArgs.Len() != 1 {
		return nil, errors.New("kinject.Arg requires a type argument and a name")
	}

	name, err := dp.constantString(call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("kinject.Arg name: %w", err)
	}
	if !token.IsIdentifier(name) || name == errVarName {
		return nil, fmt.Errorf("kinject.Arg name %q is not a usable identifier", name)
	}

	t := typeArgs.At(0)
	return &Binding{
		Kind:     BindingArg,
		Provides: []types.Type{t},
		ArgName:  name,
		Source:   fmt.Sprintf("kinject.Arg(%q) at %s", name, dp.shortPosition(call.Pos())),
	}, nil
}

func (dp *directiveParser) constantString(expr ast.Expr) (string, error) {
	tv, ok := dp.info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", fmt.Errorf("%s is not a constant string", dp.render(expr))
	}
	return constant.StringVal(tv.Value), nil
}

// portable renders expr for use in the generated file and records the imports it uses.
// Expressions that reach into a function scope outside of themselves cannot be copied.
func (dp *directiveParser) portable(expr ast.Expr) (string, error) {
	var err error
	ast.Inspect(expr, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok || err != nil {
			return err == nil
		}

		switch obj := dp.info.Uses[ident].(type) {
		case nil:
		case *types.PkgName:
			dp.imports.MarkUsed(obj.Imported().Path())
		default:
			local := obj.Pkg() == dp.pkg && obj.Parent() != nil && obj.Parent() != dp.pkg.Scope()
			declaredInside := obj.Pos() >= expr.Pos() && obj.Pos() < expr.End()
			if local && !declaredInside {
				err = fmt.Errorf("%s refers to %s, which is not declared at package level", dp.render(expr), ident.Name)
			}
		}
		return true
	})
	if err != nil {
		return "", err
	}

	return dp.render(expr), nil
}

func (dp *directiveParser) render(expr ast.Expr) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, dp.fset, expr); err != nil {
		return fmt.Sprintf("%T", expr)
	}
	return buf.String()
}

func (dp *directiveParser) shortPosition(pos token.Pos) string {
	position := dp.fset.Position(pos)
	return fmt.Sprintf("%s:%d", filepath.Base(position.Filename), position.Line)
}
