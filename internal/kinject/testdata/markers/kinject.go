package markers

import "github.com/mazrean/kinject"

var _ = kinject.Component[*Holders]("NewHolders")
