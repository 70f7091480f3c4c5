package badarg

import "github.com/mazrean/kinject"

type Foo struct{}

var argName = "foo"

var _ = kinject.Component[*Foo]("InitializeFoo", kinject.Arg[*Foo](argName))
