package basic

import "github.com/mazrean/kinject"

var repositories = kinject.Set(
	kinject.Provide(newUserRepository),
	kinject.Bind[Repository, *userRepository](),
)

var _ = kinject.Component[*Service](
	"InitializeService",
	kinject.Arg[*Config]("cfg"),
	kinject.Provide(OpenDatabase),
	repositories,
	kinject.Provide(NewService),
	kinject.Value("primary"),
)

var _ = kinject.Component[*App](
	"InitializeApp",
	kinject.Arg[*Config]("cfg"),
	kinject.Provide(OpenDatabase),
	repositories,
	kinject.Provide(NewService),
	kinject.Value("primary"),
)
