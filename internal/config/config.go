// Package config provides CLI configuration and application logic for kinject.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/mazrean/kinject/internal/kinject"
	"github.com/mazrean/kinject/internal/watcher"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info'"`
	Config   string           `kong:"short='c',help='Configuration file (default: .kinject.yaml if present)'"`
	Generate GenerateCmd      `kong:"cmd,default='withargs',help='Generate DI code (default)'"`
	Watch    WatchCmd         `kong:"cmd,help='Regenerate DI code whenever Go files change'"`
	Init     InitCmd          `kong:"cmd,help='Write an example configuration file'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// GenerateCmd is the default command for generating DI code.
type GenerateCmd struct {
	Check    bool     `kong:"help='Fail if a generated file is out of date instead of writing it'"`
	Parallel int      `kong:"short='p',help='Files processed at once (default: number of CPUs)'"`
	Files    []string `kong:"arg,optional,help='Go files to process'"`
}

// Run executes the generate command.
func (c *GenerateCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	fileCfg, err := LoadConfigFile(cli.Config)
	if err != nil {
		return err
	}

	files := c.Files
	if len(files) == 0 {
		files = fileCfg.Files
	}
	if len(files) == 0 {
		return errors.New("no files specified")
	}

	ctx, stop := signalContext()
	defer stop()

	slog.Info("Generating dependency injection code", "files", files)

	processor := kinject.NewProcessor(
		kinject.WithParallel(firstPositive(c.Parallel, fileCfg.Parallel)),
		kinject.WithCheck(c.Check || fileCfg.Check),
	)
	return processor.ProcessFiles(ctx, files)
}

// WatchCmd regenerates on every change below a directory.
type WatchCmd struct {
	Root     string        `kong:"short='r',help='Directory to watch (default: .)'"`
	Debounce time.Duration `kong:"help='Quiet period before regenerating (default: 500ms)'"`
	Files    []string      `kong:"arg,optional,help='Go files to process'"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	fileCfg, err := LoadConfigFile(cli.Config)
	if err != nil {
		return err
	}

	files := c.Files
	if len(files) == 0 {
		files = fileCfg.Files
	}
	if len(files) == 0 {
		return errors.New("no files specified")
	}

	root := c.Root
	if root == "" {
		root = fileCfg.Watch.Root
	}
	if root == "" {
		root = "."
	}

	debounce := c.Debounce
	if debounce <= 0 {
		// validated by LoadConfigFile
		debounce, _ = fileCfg.Watch.DebounceDuration()
	}

	ctx, stop := signalContext()
	defer stop()

	processor := kinject.NewProcessor(kinject.WithParallel(fileCfg.Parallel))
	if err := processor.ProcessFiles(ctx, files); err != nil {
		slog.Error("Initial generation failed", "error", err)
	}

	w, err := watcher.New(processor, files,
		watcher.WithDebounce(debounce),
		watcher.WithIgnore(fileCfg.Watch.Ignore...),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	return w.Watch(ctx)
}

// InitCmd writes an example configuration file.
type InitCmd struct {
	Force bool   `kong:"short='f',help='Overwrite an existing file'"`
	Path  string `kong:"arg,optional,default='.kinject.yaml',help='Where to write the file'"`
}

// Run executes the init command.
func (c *InitCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	if !c.Force {
		if _, err := os.Stat(c.Path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite it", c.Path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", c.Path, err)
		}
	}

	if err := GenerateExampleConfig(c.Path); err != nil {
		return err
	}

	slog.Info("Wrote example configuration", "file", c.Path)
	return nil
}

// Run parses the command line and executes the selected command.
func Run() error {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	return kongCtx.Run(&cli)
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("kinject"),
		kong.Description("A compile-time dependency injection code generator for Go"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s) released on %s", version, commit, date),
		},
	}, options...)...)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func setupLogger(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
