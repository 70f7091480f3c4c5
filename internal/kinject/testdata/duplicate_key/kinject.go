package duplicatekey

import "github.com/mazrean/kinject"

type Handler struct{}

func NewGetHandler() *Handler {
	return &Handler{}
}

func NewListHandler() *Handler {
	return &Handler{}
}

const routeIndex = "/"

var _ = kinject.Component[map[string]*Handler]("InitializeRoutes",
	kinject.IntoMap(routeIndex, NewGetHandler),
	kinject.IntoMap("/", NewListHandler),
)
