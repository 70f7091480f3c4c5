package kinject

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestNewProcessor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		opts         []ProcessorOption
		wantParallel int
		wantCheck    bool
	}{
		{
			name:         "explicit options",
			opts:         []ProcessorOption{WithParallel(3), WithCheck(true)},
			wantParallel: 3,
			wantCheck:    true,
		},
		{
			name:         "parallel defaults to the number of CPUs",
			opts:         []ProcessorOption{WithParallel(-1)},
			wantParallel: runtime.NumCPU(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewProcessor(tt.opts...)
			if p.parallel != tt.wantParallel {
				t.Errorf("parallel = %d, want %d", p.parallel, tt.wantParallel)
			}
			if p.check != tt.wantCheck {
				t.Errorf("check = %v, want %v", p.check, tt.wantCheck)
			}
		})
	}
}

func TestProcessorRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		want    []string
		wantNil bool
		wantErr []string
		errType any
	}{
		{
			name: "explicit providers, sets and values",
			file: "basic/kinject.go",
			want: []string{
				generatedHeader,
				"package basic",
				"// InitializeService is generated from the kinject.Component declared at kinject.go:10.",
				"func InitializeService(cfg *Config) (*Service, error) {",
				"database, err := OpenDatabase(cfg)",
				"userRepository1 := newUserRepository(database)",
				`var str string = "primary"`,
				"service := NewService(userRepository1, str)",
				"return service, nil",
				"func InitializeApp(cfg *Config) (*App, error) {",
				"return &App{",
			},
		},
		{
			name: "both marker origins in one graph",
			file: "markers/kinject.go",
			want: []string{
				"func NewHolders() *Holders {",
				"foo := NewFoo()",
				"nativeFoo := NewNativeFoo(foo)",
				"autowireFoo := NewAutowireFoo(foo)",
				"Autowire: autowireFoo,",
			},
		},
		{
			name: "marker in an imported package",
			file: "cross_package/kinject.go",
			want: []string{
				`"github.com/mazrean/kinject/internal/kinject/testdata/cross_package/storage"`,
				"store := storage.NewStore()",
				"handler := NewHandler(store)",
			},
		},
		{
			name: "multibindings, scopes and injected functions",
			file: "multibind/kinject.go",
			want: []string{
				"func InitializeHost() (*Host, error) {",
				"config := NewConfig()",
				"plugin := NewEchoPlugin(config)",
				"plugin1, err := NewTracePlugin()",
				"pluginList := []Plugin{\n\t\tplugin,\n\t\tplugin1,\n\t}",
				"plugin2 := NewEchoPlugin(config)",
				"pluginMap := map[string]Plugin{\n\t\t\"echo\": plugin2,\n\t}",
				"tracer := NewTracer()\n\tnewSession := func() *Session {\n\t\tsession := NewSession(config, tracer)\n\t\treturn session\n\t}",
				"Plugins:    pluginList,",
				"NewSession: newSession,",
				"}, nil",
			},
		},
		{
			name: "argument named like an import",
			file: "arg_shadow/kinject.go",
			want: []string{
				`storage2 "github.com/mazrean/kinject/internal/kinject/testdata/cross_package/storage"`,
				"func InitializeHandler(storage string) *Handler {",
				"store := storage2.NewStore()",
				"handler := NewHandler(storage, store)",
			},
		},
		{
			name:    "one map key contributed twice",
			file:    "duplicate_key/kinject.go",
			wantErr: []string{`map key "/" is contributed by both`, "NewGetHandler", "NewListHandler"},
		},
		{
			name:    "file without directives",
			file:    "plain/plain.go",
			wantNil: true,
		},
		{
			name: "missing binding",
			file: "missing/kinject.go",
			wantErr: []string{
				"cannot find an inject constructor or provider for: *github.com/mazrean/kinject/internal/kinject/testdata/missing.Database",
				"required by NewService at kinject.go:15",
			},
			errType: new(*MissingBindingError),
		},
		{
			name:    "cycle",
			file:    "cycle/kinject.go",
			wantErr: []string{"cycle detected"},
			errType: new(*CycleError),
		},
		{
			name: "two markers for one type",
			file: "duplicate/kinject.go",
			wantErr: []string{
				"cannot provide: *github.com/mazrean/kinject/internal/kinject/testdata/duplicate.Foo as it is already provided by",
				"duplicate.NewFoo (//kinject:inject)",
				"duplicate.MakeFoo (@autowire)",
			},
			errType: new(*DuplicateBindingError),
		},
		{
			name:    "marker on a method",
			file:    "invalid_marker/kinject.go",
			wantErr: []string{"a marked function must not have a receiver"},
			errType: new(*InvalidAnnotationError),
		},
		{
			name:    "non constant argument name",
			file:    "bad_arg/kinject.go",
			wantErr: []string{"argName is not a constant string"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := NewProcessor().Render(context.Background(), filepath.Join("testdata", tt.file))

			if len(tt.wantErr) > 0 {
				if err == nil {
					t.Fatalf("expected error, got output:\n%s", src)
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("error does not contain %q: %v", want, err)
					}
				}
				if tt.errType != nil && !errors.As(err, tt.errType) {
					t.Errorf("error %v is not a %T", err, tt.errType)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if src != nil {
					t.Errorf("expected no output, got:\n%s", src)
				}
				return
			}

			for _, want := range tt.want {
				if !strings.Contains(string(src), want) {
					t.Errorf("generated code does not contain %q\n%s", want, src)
				}
			}
		})
	}
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()

	filename := filepath.Join("testdata", "regenerate", "kinject.go")
	generated := OutputFileName(filename)
	t.Cleanup(func() {
		_ = os.Remove(generated)
	})
	_ = os.Remove(generated)

	ctx := context.Background()

	err := NewProcessor(WithCheck(true)).ProcessFiles(ctx, []string{filename})
	if !errors.Is(err, ErrOutOfDate) {
		t.Fatalf("check before generation: expected ErrOutOfDate, got %v", err)
	}

	if err := NewProcessor().ProcessFiles(ctx, []string{filename}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	src, err := os.ReadFile(generated)
	if err != nil {
		t.Fatalf("read generated file: %v", err)
	}
	for _, want := range []string{
		"func InitializeConfig() *Config {",
		`var str string = "regenerate"`,
		"config := NewConfig(str)",
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("generated code does not contain %q\n%s", want, src)
		}
	}

	if err := NewProcessor(WithCheck(true)).ProcessFiles(ctx, []string{filename}); err != nil {
		t.Errorf("check after generation: %v", err)
	}

	// a second run loads the package with the generated file present
	if err := NewProcessor().ProcessFiles(ctx, []string{filename}); err != nil {
		t.Errorf("regenerate: %v", err)
	}
}

func TestProcessFilesStaleOutput(t *testing.T) {
	t.Parallel()

	filename := filepath.Join("testdata", "stale", "stale.go")
	generated := OutputFileName(filename)
	t.Cleanup(func() {
		_ = os.Remove(generated)
	})

	stale := generatedHeader + "\n\npackage stale\n\nfunc InitializeGreeting() string {\n\treturn Greeting()\n}\n"
	if err := os.WriteFile(generated, []byte(stale), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}

	ctx := context.Background()

	err := NewProcessor(WithCheck(true)).ProcessFiles(ctx, []string{filename})
	if !errors.Is(err, ErrOutOfDate) {
		t.Fatalf("check with stale output: expected ErrOutOfDate, got %v", err)
	}

	if err := NewProcessor().ProcessFiles(ctx, []string{filename}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(generated); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale file should be removed, stat returned %v", err)
	}

	if err := NewProcessor(WithCheck(true)).ProcessFiles(ctx, []string{filename}); err != nil {
		t.Errorf("check after removal: %v", err)
	}

	// a hand written file with the same name is not ours to remove
	if err := os.WriteFile(generated, []byte("package stale\n"), 0o644); err != nil {
		t.Fatalf("write hand written file: %v", err)
	}
	if err := NewProcessor(WithCheck(true)).ProcessFiles(ctx, []string{filename}); err != nil {
		t.Errorf("check with hand written file: %v", err)
	}
	if err := NewProcessor().ProcessFiles(ctx, []string{filename}); err != nil {
		t.Errorf("generate with hand written file: %v", err)
	}
	if _, err := os.Stat(generated); err != nil {
		t.Errorf("hand written file should be kept: %v", err)
	}
}

func TestProcessFilesCollectsErrors(t *testing.T) {
	t.Parallel()

	files := []string{
		filepath.Join("testdata", "missing", "kinject.go"),
		filepath.Join("testdata", "cycle", "kinject.go"),
		filepath.Join("testdata", "plain", "plain.go"),
	}

	err := NewProcessor(WithParallel(2), WithCheck(true)).ProcessFiles(context.Background(), files)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), err)
	}

	var missing *MissingBindingError
	if !errors.As(err, &missing) {
		t.Errorf("missing binding error not reported: %v", err)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Errorf("cycle error not reported: %v", err)
	}
}

func TestProcessFilesCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewProcessor().ProcessFiles(ctx, []string{filepath.Join("testdata", "basic", "kinject.go")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
