// Package kinject provides the typed directives read by the kinject code generator.
//
// Nothing in this package does work at run time. A file declares components with
// Component, the generator reads the declaration with go/types and writes the
// constructor into a sibling *_gen.go file:
//
//	//go:generate go tool kinject $GOFILE
//
//	var _ = kinject.Component[*AppComponent](
//		"NewAppComponent",
//		kinject.Bind[IFoo, *Foo](),
//	)
//
// Types whose constructor carries an injection marker do not need to be listed.
// Two markers are recognised and mean the same thing:
//
//	//kinject:inject
//	func NewFoo() *Foo { ... }
//
//	// @autowire
//	func NewBar(foo *Foo) *Bar { ... }
package kinject

// name is the identifier of a generated function.
type name string

// provider is implemented by every directive that may be passed to Component or Set.
type provider interface {
	provide()
}

// fnProvider wraps a constructor function.
type fnProvider[T any] struct {
	fn T
}

func (p fnProvider[T]) provide() {}

// Fn returns the wrapped function.
func (p fnProvider[T]) Fn() T {
	return p.fn
}

// Provide registers fn as a constructor. Every result of fn becomes a binding,
// except a trailing error, which makes the generated function fallible.
//
//	kinject.Provide(NewDatabase) // func NewDatabase(cfg *Config) (*Database, error)
func Provide[T any](fn T) fnProvider[T] {
	return fnProvider[T]{fn: fn}
}

type valueProvider[T any] struct {
	v T
}

func (p valueProvider[T]) provide() {}

// Value registers v as the binding for its static type.
//
//	kinject.Value("localhost:8080")
//	kinject.Value[time.Duration](5 * time.Second)
func Value[T any](v T) valueProvider[T] {
	return valueProvider[T]{v: v}
}

type bindProvider[I, T any] struct{}

func (p bindProvider[I, T]) provide() {}

// Bind resolves requests for I with the binding of T. T must be assignable to I.
//
//	kinject.Bind[UserRepository, *DatabaseUserRepo]()
func Bind[I, T any]() bindProvider[I, T] {
	return bindProvider[I, T]{}
}

type argProvider[T any] struct {
	name string
}

func (p argProvider[T]) provide() {}

// Arg adds a parameter called name to the generated function.
// Parameters appear in the order their Arg directives are declared.
func Arg[T any](name string) argProvider[T] {
	return argProvider[T]{name: name}
}

type scopedProvider[T any] struct {
	fn T
}

func (p scopedProvider[T]) provide() {}

// Scoped registers fn like Provide, but the value is shared by everything one
// component call builds, including functions injected as func() T, which otherwise
// construct their own. A marked constructor gets the same behaviour with the
// scope=component option.
//
//	kinject.Scoped(NewConnectionPool)
func Scoped[T any](fn T) scopedProvider[T] {
	return scopedProvider[T]{fn: fn}
}

type sliceProvider[T any] struct {
	fn T
}

func (p sliceProvider[T]) provide() {}

// IntoSlice contributes the result of fn to a slice binding. All contributions of
// the same element type are collected, in declaration order, into one []E.
//
//	kinject.IntoSlice(NewHealthCheck), // func NewHealthCheck(db *Database) Check
//	kinject.IntoSlice(NewPingCheck),   // func NewPingCheck() Check
//	// a constructor taking []Check receives both
func IntoSlice[T any](fn T) sliceProvider[T] {
	return sliceProvider[T]{fn: fn}
}

type mapProvider[K comparable, T any] struct {
	key K
	fn  T
}

func (p mapProvider[K, T]) provide() {}

// IntoMap contributes the result of fn under key to a map[K]V binding.
// Constant keys must be unique within a component.
//
//	kinject.IntoMap("json", NewJSONCodec),
//	kinject.IntoMap("yaml", NewYAMLCodec),
//	// a constructor taking map[string]Codec receives both
func IntoMap[K comparable, T any](key K, fn T) mapProvider[K, T] {
	return mapProvider[K, T]{key: key, fn: fn}
}

type set struct{}

func (s set) provide() {}

// Set groups providers so they can be shared between components.
// A package level variable initialised with Set may be passed to Component by name.
func Set(providers ...provider) set {
	return set{}
}

// Component declares a generated function called name that returns T.
//
// If T has a binding, the function returns it. Otherwise T must be a struct or a
// pointer to a struct, and every exported field is filled from the dependency graph.
// The generated function also returns an error when any constructor on the path does.
//
// A request for a function type such as func() T or func(A) (T, error) that has no
// binding of its own is satisfied by a closure which builds T on every call. The
// parameters of the function are bindings inside the closure.
func Component[T any](name name, providers ...provider) struct{} {
	return struct{}{}
}
