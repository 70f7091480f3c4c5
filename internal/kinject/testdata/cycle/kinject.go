package cycle

import "github.com/mazrean/kinject"

type A struct {
	b *B
}

type B struct {
	a *A
}

func NewA(b *B) *A {
	return &A{b: b}
}

func NewB(a *A) *B {
	return &B{a: a}
}

var _ = kinject.Component[*A](
	"InitializeA",
	kinject.Provide(NewA),
	kinject.Provide(NewB),
)
