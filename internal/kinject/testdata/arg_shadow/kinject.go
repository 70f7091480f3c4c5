package argshadow

import (
	"github.com/mazrean/kinject"
	"github.com/mazrean/kinject/internal/kinject/testdata/cross_package/storage"
)

type Handler struct {
	label string
	store *storage.Store
}

func NewHandler(label string, store *storage.Store) *Handler {
	return &Handler{label: label, store: store}
}

var _ = kinject.Component[*Handler]("InitializeHandler",
	kinject.Arg[string]("storage"),
	kinject.Provide(NewHandler),
)
