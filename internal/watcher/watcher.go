// Package watcher regenerates injectors when Go files under a directory change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mazrean/kinject/internal/kinject"
)

// DefaultDebounce is the quiet period after the last change before regenerating.
const DefaultDebounce = 500 * time.Millisecond

// Generator regenerates the injectors of files.
type Generator interface {
	ProcessFiles(ctx context.Context, files []string) error
}

// Watcher runs a Generator whenever a watched Go file changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	gen      Generator
	files    []string
	ignore   []string
	debounce time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values select DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore skips files whose base name matches one of the filepath.Match patterns.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = append(w.ignore, patterns...)
	}
}

// New creates a watcher that passes files to gen on every change.
func New(gen Generator, files []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		gen:      gen,
		files:    files,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Add watches root and every directory below it, except hidden ones, vendor and testdata.
func (w *Watcher) Add(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		slog.Debug("Watching directory", "dir", path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", root, err)
	}
	return nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata"
}

// Watch handles change events until ctx is done. Changes within the debounce period
// are coalesced into one regeneration.
func (w *Watcher) Watch(ctx context.Context) error {
	slog.Info("Watching for changes", "files", w.files, "debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.addCreatedDir(event)
			if !w.relevant(event) {
				continue
			}

			slog.Debug("Change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.regenerate(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watch error", "error", err)
		}
	}
}

func (w *Watcher) regenerate(ctx context.Context) {
	slog.Info("Regenerating", "files", w.files)

	if err := w.gen.ProcessFiles(ctx, w.files); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("Generation failed", "error", err)
		return
	}

	slog.Info("Generation succeeded")
}

func (w *Watcher) addCreatedDir(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() || skipDir(info.Name()) {
		return
	}
	if err := w.Add(event.Name); err != nil {
		slog.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
	}
}

// relevant reports whether event should trigger a regeneration.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return !w.shouldIgnore(event.Name)
}

// shouldIgnore reports whether changes to path are not worth a regeneration.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if !strings.HasSuffix(base, ".go") {
		return true
	}
	if kinject.IsGenerated(base) || strings.HasSuffix(base, "_test.go") {
		return true
	}

	for _, pattern := range w.ignore {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
