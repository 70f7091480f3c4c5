// Package kinject implements the kinject code generator: it loads a directive file,
// collects injection markers, resolves each component and writes the constructors.
package kinject

import (
	"go/token"
	"go/types"
)

// MetaData describes the directive file a generated file belongs to.
type MetaData struct {
	Package *types.Package
	Imports *ImportSet
}

// BindingKind is the way a binding produces its value.
type BindingKind int

const (
	// BindingProvider calls a constructor function.
	BindingProvider BindingKind = iota
	// BindingValue evaluates a constant expression.
	BindingValue
	// BindingBind reuses the binding of Target.
	BindingBind
	// BindingArg reads a parameter of the generated function.
	BindingArg
	// BindingSlice collects the values of Elements into a slice.
	BindingSlice
	// BindingMap collects the values of Elements into a map under their MapKey.
	BindingMap
	// BindingFunc is a closure that builds its result on every call.
	BindingFunc
)

func (k BindingKind) String() string {
	switch k {
	case BindingProvider:
		return "provider"
	case BindingValue:
		return "value"
	case BindingBind:
		return "bind"
	case BindingArg:
		return "arg"
	case BindingSlice:
		return "slice"
	case BindingMap:
		return "map"
	case BindingFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Callee is the function a provider binding calls.
type Callee struct {
	// Expr is the source text of an explicit Provide argument, valid in the directive file.
	Expr string
	// Pkg and Name identify a marked constructor. Pkg is qualified on output.
	Pkg  *types.Package
	Name string
}

// Binding is one way of obtaining values of the Provides types.
type Binding struct {
	Kind         BindingKind
	Provides     []types.Type
	Requires     []types.Type
	ReturnsError bool

	Callee *Callee

	ValueExpr string
	// ValueTyped is set when ValueExpr already has the bound type.
	ValueTyped bool

	ArgName string

	// Target is the bound type of a BindingBind.
	Target types.Type

	// Elements are the contributions collected by a BindingSlice or BindingMap.
	Elements []*Binding
	// MapKey is the key expression of a map contribution.
	MapKey string
	// mapKeyValue is the exact value of a constant MapKey.
	mapKeyValue string

	// Scoped bindings are built once per component call, inside injected functions too.
	Scoped bool

	// Origin is set for bindings discovered from injection markers.
	Origin MarkerOrigin
	Source string
}

// Explicit reports whether the binding was listed in a Component directive.
func (b *Binding) Explicit() bool {
	return b.Origin == OriginNone
}

// ComponentDirective is a parsed kinject.Component call.
type ComponentDirective struct {
	Name     string
	Type     types.Type
	Args     []*Binding
	Bindings []*Binding
	Pos      token.Position
}

// Var is a value inside a generated function: a parameter or a constructor result.
type Var struct {
	Name string
	Type types.Type
	Refs int
}

// Ref records a use of the variable.
func (v *Var) Ref() {
	v.Refs++
}

// Ident returns the name to declare the variable with, "_" when it is never read.
func (v *Var) Ident() string {
	if v.Refs == 0 || v.Name == "" {
		return "_"
	}
	return v.Name
}

// InjectorStep evaluates one binding.
type InjectorStep struct {
	Binding *Binding
	Args    []*Var
	Results []*Var
	// Func is the body of a BindingFunc closure.
	Func *Injector
}

// InjectorField assigns an entry point of a struct component.
type InjectorField struct {
	Name  string
	Value *Var
}

// Injector is the resolved form of a component, ready to be rendered.
// The body of an injected function is an Injector without a Name.
type Injector struct {
	Name         string
	Return       types.Type
	Params       []*Var
	Steps        []*InjectorStep
	Result       *Var
	Fields       []*InjectorField
	ReturnsError bool
	// Declared is the file:line of the component directive.
	Declared string
}
