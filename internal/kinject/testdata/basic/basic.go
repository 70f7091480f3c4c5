package basic

import "errors"

type Config struct {
	DSN string
}

type Database struct {
	dsn string
}

func OpenDatabase(cfg *Config) (*Database, error) {
	if cfg.DSN == "" {
		return nil, errors.New("empty dsn")
	}
	return &Database{dsn: cfg.DSN}, nil
}

type Repository interface {
	Name() string
}

type userRepository struct {
	db *Database
}

func newUserRepository(db *Database) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Name() string {
	return "users@" + r.db.dsn
}

type Service struct {
	repo  Repository
	label string
}

func NewService(repo Repository, label string) *Service {
	return &Service{repo: repo, label: label}
}

type App struct {
	Service *Service
	DB      *Database
}
