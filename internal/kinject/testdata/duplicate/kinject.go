package duplicate

import "github.com/mazrean/kinject"

type Foo struct{}

//kinject:inject
func NewFoo() *Foo {
	return &Foo{}
}

// @autowire
func MakeFoo() *Foo {
	return &Foo{}
}

var _ = kinject.Component[*Foo]("InitializeFoo")
