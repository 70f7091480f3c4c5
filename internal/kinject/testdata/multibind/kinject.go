package multibind

import "github.com/mazrean/kinject"

type Config struct {
	Name string
}

func NewConfig() *Config {
	return &Config{Name: "multibind"}
}

type Plugin interface {
	Name() string
}

type echoPlugin struct {
	cfg *Config
}

func (p *echoPlugin) Name() string {
	return p.cfg.Name + "/echo"
}

func NewEchoPlugin(cfg *Config) Plugin {
	return &echoPlugin{cfg: cfg}
}

type tracePlugin struct{}

func (tracePlugin) Name() string {
	return "trace"
}

func NewTracePlugin() (Plugin, error) {
	return tracePlugin{}, nil
}

type Tracer struct{}

//kinject:inject scope=component
func NewTracer() *Tracer {
	return &Tracer{}
}

type Session struct {
	cfg    *Config
	tracer *Tracer
}

func NewSession(cfg *Config, tracer *Tracer) *Session {
	return &Session{cfg: cfg, tracer: tracer}
}

type Host struct {
	Plugins    []Plugin
	ByName     map[string]Plugin
	NewSession func() *Session
}

var PluginSet = kinject.Set(
	kinject.IntoSlice(NewEchoPlugin),
	kinject.IntoSlice(NewTracePlugin),
)

var _ = kinject.Component[*Host]("InitializeHost",
	kinject.Scoped(NewConfig),
	PluginSet,
	kinject.IntoMap("echo", NewEchoPlugin),
	kinject.Provide(NewSession),
)
