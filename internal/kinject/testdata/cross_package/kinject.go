package crosspackage

import (
	"github.com/mazrean/kinject"
	"github.com/mazrean/kinject/internal/kinject/testdata/cross_package/storage"
)

type Handler struct {
	store *storage.Store
}

func NewHandler(store *storage.Store) *Handler {
	return &Handler{store: store}
}

var _ = kinject.Component[*Handler]("InitializeHandler", kinject.Provide(NewHandler))
