package markers

// Foo is shared by every holder.
type Foo struct{}

//kinject:inject
func NewFoo() *Foo {
	return &Foo{}
}

type Greeter interface {
	Greet() string
}

// NativeFoo is marked with the native directive.
//
//kinject:inject
type NativeFoo struct {
	foo *Foo
}

func NewNativeFoo(foo *Foo) *NativeFoo {
	return &NativeFoo{foo: foo}
}

func (n *NativeFoo) Foo() *Foo {
	return n.foo
}

// AutowireFoo is marked with the autowire annotation.
//
// @autowire(Greeter)
type AutowireFoo struct {
	foo *Foo
}

func NewAutowireFoo(foo *Foo) *AutowireFoo {
	return &AutowireFoo{foo: foo}
}

func (a *AutowireFoo) Foo() *Foo {
	return a.foo
}

func (a *AutowireFoo) Greet() string {
	return "hello"
}

type Holders struct {
	Native   *NativeFoo
	Autowire *AutowireFoo
	Greeter  Greeter
}
