package missing

import "github.com/mazrean/kinject"

type Database struct{}

type Service struct {
	db *Database
}

func NewService(db *Database) *Service {
	return &Service{db: db}
}

var _ = kinject.Component[*Service]("InitializeService", kinject.Provide(NewService))
