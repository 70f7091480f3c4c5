package storage

// Store keeps values in memory.
//
// @autowire
type Store struct {
	data map[string]string
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(key string) string {
	return s.data[key]
}
