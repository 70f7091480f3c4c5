package regenerate

import "github.com/mazrean/kinject"

type Config struct {
	Name string
}

func NewConfig(name string) *Config {
	return &Config{Name: name}
}

var _ = kinject.Component[*Config](
	"InitializeConfig",
	kinject.Provide(NewConfig),
	kinject.Value("regenerate"),
)
