package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		wantCommand string
		check       func(t *testing.T, cli *CLI)
	}{
		{
			name:        "files select generate by default",
			args:        []string{"kinject.go", "wire.go"},
			wantCommand: "generate",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, []string{"kinject.go", "wire.go"}, cli.Generate.Files)
				assert.Equal(t, "info", cli.LogLevel)
			},
		},
		{
			name:        "generate flags",
			args:        []string{"-l", "debug", "generate", "--check", "-p", "4", "kinject.go"},
			wantCommand: "generate",
			check: func(t *testing.T, cli *CLI) {
				assert.True(t, cli.Generate.Check)
				assert.Equal(t, 4, cli.Generate.Parallel)
				assert.Equal(t, "debug", cli.LogLevel)
			},
		},
		{
			name:        "watch flags",
			args:        []string{"watch", "--root", "./internal", "--debounce", "1s", "kinject.go"},
			wantCommand: "watch",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, "./internal", cli.Watch.Root)
				assert.Equal(t, time.Second, cli.Watch.Debounce)
				assert.Equal(t, []string{"kinject.go"}, cli.Watch.Files)
			},
		},
		{
			name:        "init default path",
			args:        []string{"init"},
			wantCommand: "init",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, DefaultConfigFile, cli.Init.Path)
				assert.False(t, cli.Init.Force)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cli CLI
			parser, err := newParser(&cli)
			require.NoError(t, err)

			ctx, err := parser.Parse(tt.args)
			require.NoError(t, err)

			assert.Contains(t, ctx.Command(), tt.wantCommand)
			tt.check(t, &cli)
		})
	}
}

func TestParseRejectsUnknownLogLevel(t *testing.T) {
	t.Parallel()

	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--log-level", "trace", "kinject.go"})
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestGenerateCmdWithoutFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kinject.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallel: 2\n"), 0o644))

	cmd := &GenerateCmd{}
	err := cmd.Run(&CLI{LogLevel: "error", Config: path})
	assert.EqualError(t, err, "no files specified")
}

func TestGenerateCmdMissingConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.yaml")

	cmd := &GenerateCmd{Files: []string{"kinject.go"}}
	err := cmd.Run(&CLI{LogLevel: "error", Config: path})
	assert.ErrorContains(t, err, "read config file")
}

func TestInitCmd(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	cli := &CLI{LogLevel: "error"}

	require.NoError(t, (&InitCmd{Path: path}).Run(cli))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kinject.go"}, cfg.Files)

	err = (&InitCmd{Path: path}).Run(cli)
	assert.ErrorContains(t, err, "already exists")

	assert.NoError(t, (&InitCmd{Path: path, Force: true}).Run(cli))
}

func TestFirstPositive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, firstPositive(0, 3, 5))
	assert.Equal(t, 2, firstPositive(2, 0))
	assert.Equal(t, 0, firstPositive(0, -1))
	assert.Equal(t, 0, firstPositive())
}
