package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up in the working directory.
const DefaultConfigFile = ".kinject.yaml"

var configCandidates = []string{
	DefaultConfigFile,
	".kinject.yml",
	"kinject.yaml",
	"kinject.yml",
}

// FileConfig is the content of a .kinject.yaml file. Command line flags win over it.
type FileConfig struct {
	// Files are the directive files processed when none are given on the command line.
	Files    []string    `yaml:"files"`
	Parallel int         `yaml:"parallel"`
	Check    bool        `yaml:"check"`
	Watch    WatchConfig `yaml:"watch"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Root     string   `yaml:"root"`
	Debounce string   `yaml:"debounce"`
	Ignore   []string `yaml:"ignore"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *FileConfig {
	return &FileConfig{
		Watch: WatchConfig{
			Root:     ".",
			Debounce: "500ms",
		},
	}
}

// LoadConfigFile reads path. An empty path looks for the default file names in the
// working directory and yields DefaultConfig when there is none; a path that was
// given explicitly must exist.
func LoadConfigFile(path string) (*FileConfig, error) {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if _, err := cfg.Watch.DebounceDuration(); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// DebounceDuration parses Debounce. An empty value is zero.
func (c WatchConfig) DebounceDuration() (time.Duration, error) {
	if c.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	return d, nil
}

// SaveConfigFile writes the configuration to path.
func (c *FileConfig) SaveConfigFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	for _, name := range configCandidates {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// GenerateExampleConfig writes an example configuration to path.
func GenerateExampleConfig(path string) error {
	example := &FileConfig{
		Files:    []string{"kinject.go"},
		Parallel: 0,
		Check:    false,
		Watch: WatchConfig{
			Root:     ".",
			Debounce: "500ms",
			Ignore:   []string{"*.pb.go", "*_mock.go"},
		},
	}

	return example.SaveConfigFile(path)
}
