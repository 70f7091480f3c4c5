package kinject

import (
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
)

type bindingRef struct {
	binding *Binding
	index   int
}

type frame struct {
	key    string
	source string
}

// Graph resolves one component against its explicit bindings and the marker bindings.
// Injected functions are resolved by child graphs whose parent is the enclosing graph.
type Graph struct {
	component   *ComponentDirective
	self        *types.Package
	explicit    map[string]bindingRef
	injectables *InjectableSet
	parent      *Graph

	params     map[*Binding]*Var
	resolved   map[string]*Var
	steps      map[*Binding]*InjectorStep
	inProgress map[*Binding]bool
	used       map[*Binding]bool
	stack      []frame

	injector *Injector
}

// NewGraph indexes the bindings of component. Arguments and explicit providers
// win over marker bindings; two explicit bindings for one type are an error.
func NewGraph(metaData *MetaData, component *ComponentDirective, injectables *InjectableSet) (*Graph, error) {
	if component.Type == nil {
		return nil, errors.New("component type is nil")
	}
	if injectables == nil {
		injectables = NewInjectableSet()
	}

	g := &Graph{
		component:   component,
		explicit:    make(map[string]bindingRef),
		injectables: injectables,
		params:      make(map[*Binding]*Var),
		resolved:    make(map[string]*Var),
		steps:       make(map[*Binding]*InjectorStep),
		inProgress:  make(map[*Binding]bool),
		used:        make(map[*Binding]bool),
		injector: &Injector{
			Name:   component.Name,
			Return: component.Type,
		},
	}
	if component.Pos.IsValid() {
		g.injector.Declared = fmt.Sprintf("%s:%d", filepath.Base(component.Pos.Filename), component.Pos.Line)
	}
	if metaData != nil {
		g.self = metaData.Package
	}

	for _, arg := range component.Args {
		if err := g.add(arg); err != nil {
			return nil, err
		}

		param := &Var{Name: arg.ArgName, Type: arg.Provides[0]}
		g.params[arg] = param
		g.injector.Params = append(g.injector.Params, param)
	}
	for _, b := range component.Bindings {
		if err := g.add(b); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (g *Graph) add(b *Binding) error {
	for i, t := range b.Provides {
		if t == nil {
			return fmt.Errorf("%s provides a nil type at index %d", b.Source, i)
		}

		key := typeKey(t)
		if existing, ok := g.explicit[key]; ok {
			return &DuplicateBindingError{
				Key:     key,
				Sources: []string{existing.binding.Source, b.Source},
			}
		}
		g.explicit[key] = bindingRef{binding: b, index: i}
	}
	return nil
}

// Build resolves every entry point of the component into an Injector.
func (g *Graph) Build() (*Injector, error) {
	returnType := g.component.Type

	ref, err := g.lookup(typeKey(returnType))
	if err != nil {
		return nil, err
	}
	if _, isFunc := injectableFunc(returnType); ref != nil || isFunc {
		result, err := g.resolve(returnType, g.component.Name)
		if err != nil {
			return nil, err
		}
		g.injector.Result = result
	} else {
		st, ok := componentStruct(returnType)
		if !ok {
			return nil, &MissingBindingError{
				Key:   typeKey(returnType),
				Trace: []string{"returned by " + g.component.Name},
			}
		}

		for field := range st.Fields() {
			if !field.Exported() {
				continue
			}
			value, err := g.resolve(field.Type(), fmt.Sprintf("%s.%s", typeKey(returnType), field.Name()))
			if err != nil {
				return nil, err
			}
			g.injector.Fields = append(g.injector.Fields, &InjectorField{
				Name:  field.Name(),
				Value: value,
			})
		}
		if len(g.injector.Fields) == 0 {
			return nil, fmt.Errorf("component %s has no exported fields to inject", typeKey(returnType))
		}
	}

	for _, b := range g.component.Bindings {
		if !g.used[b] {
			slog.Warn("unused provider", "component", g.component.Name, "provider", b.Source)
		}
	}

	return g.injector, nil
}

// componentStruct returns the struct behind t when t is a struct or a pointer to one.
func componentStruct(t types.Type) (*types.Struct, bool) {
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if _, ok := types.Unalias(t).(*types.Named); !ok {
		return nil, false
	}
	st, ok := t.Underlying().(*types.Struct)
	return st, ok
}

// lookup finds the binding for key. It returns nil without error when there is none.
func (g *Graph) lookup(key string) (*bindingRef, error) {
	if ref, ok := g.explicit[key]; ok {
		return &ref, nil
	}

	candidates := g.injectables.Lookup(key)
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return &bindingRef{binding: candidates[0]}, nil
	default:
		sources := make([]string, 0, len(candidates))
		for _, c := range candidates {
			sources = append(sources, c.Source)
		}
		return nil, &DuplicateBindingError{Key: key, Sources: sources}
	}
}

func (g *Graph) resolve(t types.Type, requiredBy string) (*Var, error) {
	key := typeKey(t)
	if v, ok := g.resolved[key]; ok {
		v.Ref()
		return v, nil
	}

	for _, f := range g.stack {
		if f.key == key {
			return nil, &CycleError{Trace: g.trace(key, requiredBy)}
		}
	}

	ref, err := g.lookup(key)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		if sig, ok := injectableFunc(t); ok {
			return g.resolveFunc(t, sig)
		}
		return nil, &MissingBindingError{Key: key, Trace: g.trace(key, requiredBy)}
	}

	b := ref.binding
	if b.Scoped && g.parent != nil {
		v, err := g.root().resolve(t, requiredBy)
		if err != nil {
			return nil, err
		}
		g.resolved[key] = v
		return v, nil
	}
	if g.inProgress[b] {
		return nil, &CycleError{Trace: g.trace(key, requiredBy)}
	}
	g.used[b] = true

	g.stack = append(g.stack, frame{key: key, source: b.Source})
	defer func() {
		g.stack = g.stack[:len(g.stack)-1]
	}()

	var v *Var
	switch b.Kind {
	case BindingArg:
		v = g.params[b]
	case BindingBind:
		v, err = g.resolve(b.Target, b.Source)
		if err != nil {
			return nil, err
		}
		// resolve counted the reference already
		v.Refs--
	case BindingProvider, BindingValue, BindingSlice, BindingMap:
		step, err := g.step(b)
		if err != nil {
			return nil, err
		}
		v = step.Results[ref.index]
	default:
		return nil, fmt.Errorf("unknown binding kind %s", b.Kind)
	}

	v.Ref()
	g.resolved[key] = v
	return v, nil
}

func (g *Graph) step(b *Binding) (*InjectorStep, error) {
	if step, ok := g.steps[b]; ok {
		return step, nil
	}

	if err := g.checkCallable(b); err != nil {
		return nil, err
	}

	g.inProgress[b] = true
	defer delete(g.inProgress, b)

	step := &InjectorStep{
		Binding: b,
		Args:    make([]*Var, 0, len(b.Requires)),
		Results: make([]*Var, 0, len(b.Provides)),
	}
	for _, req := range b.Requires {
		arg, err := g.resolve(req, b.Source)
		if err != nil {
			return nil, err
		}
		step.Args = append(step.Args, arg)
	}
	for _, el := range b.Elements {
		elStep, err := g.step(el)
		if err != nil {
			return nil, err
		}
		v := elStep.Results[0]
		v.Ref()
		step.Args = append(step.Args, v)
	}
	for _, t := range b.Provides {
		step.Results = append(step.Results, &Var{Type: t})
	}

	g.steps[b] = step
	g.injector.Steps = append(g.injector.Steps, step)
	if b.ReturnsError {
		g.injector.ReturnsError = true
	}

	return step, nil
}

// resolveFunc satisfies a request for a function type with a closure that builds
// the result on every call. Parameters of the function are bindings inside it and
// win over the bindings of the component.
func (g *Graph) resolveFunc(t types.Type, sig *types.Signature) (*Var, error) {
	key := typeKey(t)
	b := &Binding{
		Kind:     BindingFunc,
		Provides: []types.Type{t},
		Source:   "injected function " + key,
	}

	g.stack = append(g.stack, frame{key: key, source: b.Source})
	defer func() {
		g.stack = g.stack[:len(g.stack)-1]
	}()

	results := sig.Results()
	child := g.child(results.At(0).Type())
	seen := make(map[string]bool, sig.Params().Len())
	for v := range sig.Params().Variables() {
		paramKey := typeKey(v.Type())
		if seen[paramKey] {
			return nil, fmt.Errorf("%s has more than one parameter of type %s", key, paramKey)
		}
		seen[paramKey] = true

		param := &Binding{
			Kind:     BindingArg,
			Provides: []types.Type{v.Type()},
			Source:   b.Source,
		}
		child.explicit[paramKey] = bindingRef{binding: param}

		paramVar := &Var{Type: v.Type()}
		child.params[param] = paramVar
		child.injector.Params = append(child.injector.Params, paramVar)
	}

	result, err := child.resolve(child.injector.Return, b.Source)
	if err != nil {
		return nil, err
	}
	child.injector.Result = result

	returnsError := results.Len() == 2
	if child.injector.ReturnsError && !returnsError {
		return nil, fmt.Errorf("%s calls a constructor that returns an error, request func(...) (%s, error) instead", b.Source, typeKey(child.injector.Return))
	}
	child.injector.ReturnsError = returnsError
	g.used[b] = true

	step := &InjectorStep{
		Binding: b,
		Results: []*Var{{Type: t}},
		Func:    child.injector,
	}
	g.injector.Steps = append(g.injector.Steps, step)

	v := step.Results[0]
	v.Ref()
	g.resolved[key] = v
	return v, nil
}

// child creates the graph of an injected function returning returnType. It sees the
// bindings and parameters of g but builds every value on its own, except scoped ones.
func (g *Graph) child(returnType types.Type) *Graph {
	return &Graph{
		component:   g.component,
		self:        g.self,
		explicit:    maps.Clone(g.explicit),
		injectables: g.injectables,
		parent:      g,
		params:      maps.Clone(g.params),
		resolved:    make(map[string]*Var),
		steps:       make(map[*Binding]*InjectorStep),
		inProgress:  make(map[*Binding]bool),
		used:        g.used,
		stack:       slices.Clone(g.stack),
		injector:    &Injector{Return: returnType},
	}
}

func (g *Graph) root() *Graph {
	for g.parent != nil {
		g = g.parent
	}
	return g
}

// injectableFunc reports whether t is a function type the graph can build a closure
// for: non variadic, returning T or (T, error).
func injectableFunc(t types.Type) (*types.Signature, bool) {
	sig, ok := t.Underlying().(*types.Signature)
	if !ok || sig.Variadic() || sig.TypeParams() != nil {
		return nil, false
	}

	results := sig.Results()
	switch results.Len() {
	case 1:
		return sig, !isErrorType(results.At(0).Type())
	case 2:
		return sig, !isErrorType(results.At(0).Type()) && isErrorType(results.At(1).Type())
	default:
		return nil, false
	}
}

// checkCallable rejects marked constructors the generated file cannot refer to.
func (g *Graph) checkCallable(b *Binding) error {
	if b.Callee == nil || b.Callee.Pkg == nil || g.self == nil {
		return nil
	}
	if b.Callee.Pkg.Path() != g.self.Path() && !token.IsExported(b.Callee.Name) {
		return fmt.Errorf("%s is not exported and cannot be called from package %s", b.Source, g.self.Path())
	}
	return nil
}

// trace lists the request chain, innermost first.
func (g *Graph) trace(key, requiredBy string) []string {
	trace := make([]string, 0, len(g.stack)+1)
	trace = append(trace, fmt.Sprintf("%s required by %s", key, requiredBy))
	for i := len(g.stack) - 1; i >= 0; i-- {
		f := g.stack[i]
		by := g.component.Name
		if i > 0 {
			by = g.stack[i-1].source
		}
		trace = append(trace, fmt.Sprintf("%s provided by %s, required by %s", f.key, f.source, by))
	}
	return trace
}

// CreateInjector resolves component into an Injector.
func CreateInjector(metaData *MetaData, component *ComponentDirective, injectables *InjectableSet) (*Injector, error) {
	graph, err := NewGraph(metaData, component, injectables)
	if err != nil {
		return nil, fmt.Errorf("create graph: %w", err)
	}

	injector, err := graph.Build()
	if err != nil {
		return nil, fmt.Errorf("build component %s: %w", component.Name, err)
	}

	return injector, nil
}
