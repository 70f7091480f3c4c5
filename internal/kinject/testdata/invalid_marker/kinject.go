package invalidmarker

import "github.com/mazrean/kinject"

type Foo struct{}

func newFoo() *Foo {
	return &Foo{}
}

//kinject:inject
func (f *Foo) Clone() *Foo {
	return &Foo{}
}

var _ = kinject.Component[*Foo]("InitializeFoo", kinject.Provide(newFoo))
