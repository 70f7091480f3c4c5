package kinject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Processor handles the overall dependency injection code generation process.
type Processor struct {
	parallel int
	check    bool
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithParallel bounds the number of files processed at once. Values below one
// select the number of CPUs.
func WithParallel(n int) ProcessorOption {
	return func(p *Processor) {
		p.parallel = n
	}
}

// WithCheck makes the processor compare instead of write: a generated file that
// differs from what would be written is reported with ErrOutOfDate.
func WithCheck(check bool) ProcessorOption {
	return func(p *Processor) {
		p.check = check
	}
}

// NewProcessor creates a new processor instance.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	if p.parallel < 1 {
		p.parallel = runtime.NumCPU()
	}
	return p
}

// ProcessFiles generates the injectors of every file. A failing file does not stop
// the others; all failures are returned together.
func (p *Processor) ProcessFiles(ctx context.Context, files []string) error {
	var (
		mu   sync.Mutex
		errs error
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.parallel)

	for _, filename := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := p.processFile(ctx, filename); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", filename, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// processFile processes a single Go file for injector generation.
func (p *Processor) processFile(ctx context.Context, filename string) error {
	slog.Debug("Processing file", "file", filename)

	src, err := p.Render(ctx, filename)
	if err != nil {
		return err
	}
	if src == nil {
		return p.removeStale(filename)
	}

	outputFileName := OutputFileName(filename)

	if p.check {
		current, err := os.ReadFile(outputFileName)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", outputFileName, err)
		}
		if !bytes.Equal(current, src) {
			return fmt.Errorf("%s: %w", outputFileName, ErrOutOfDate)
		}
		return nil
	}

	if err := os.WriteFile(outputFileName, src, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputFileName, err)
	}
	slog.Info("Generated", "file", outputFileName)

	return nil
}

// removeStale handles a file without components. A file generated for it earlier
// is out of date; files without the generated header are left alone.
func (p *Processor) removeStale(filename string) error {
	outputFileName := OutputFileName(filename)

	current, err := os.ReadFile(outputFileName)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No component directives", "file", filename)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", outputFileName, err)
	}
	if !bytes.HasPrefix(current, []byte(generatedHeader)) {
		return nil
	}

	if p.check {
		return fmt.Errorf("%s: %w", outputFileName, ErrOutOfDate)
	}

	if err := os.Remove(outputFileName); err != nil {
		return fmt.Errorf("remove %s: %w", outputFileName, err)
	}
	slog.Info("Removed stale generated file", "file", outputFileName)

	return nil
}

// Render returns the generated source for filename, or nil when the file declares
// no components.
func (p *Processor) Render(ctx context.Context, filename string) ([]byte, error) {
	parsed, err := NewParser().ParseFile(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	if len(parsed.Components) == 0 {
		return nil, nil
	}

	slog.Info("Found component directives", "file", filename, "count", len(parsed.Components))

	var errs error
	injectors := make([]*Injector, 0, len(parsed.Components))
	for _, component := range parsed.Components {
		injector, err := CreateInjector(parsed.MetaData, component, parsed.Injectables)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		injectors = append(injectors, injector)
	}
	if errs != nil {
		return nil, errs
	}

	src, err := Render(OutputFileName(parsed.Filename), parsed.MetaData, injectors)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return src, nil
}

// OutputFileName returns the generated file name for a directive file: x.go becomes x_gen.go.
func OutputFileName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + generatedSuffix + ext
}

// IsGenerated reports whether filename looks like a generated file.
func IsGenerated(filename string) bool {
	ext := filepath.Ext(filename)
	return strings.HasSuffix(strings.TrimSuffix(filename, ext), generatedSuffix)
}
