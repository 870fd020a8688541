package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/roach88/zkfuzz/internal/ir"
	"github.com/roach88/zkfuzz/internal/programs"
)

// DefaultImports are the packages interpreted programs may import.
var DefaultImports = []string{
	"encoding/json",
	"errors",
	"math",
	"math/bits",
	"strings",
	"unicode/utf8",
}

const yaegiModule = "github.com/traefik/yaegi"

// Interp runs each program by interpreting its Go source with yaegi. The
// interpreter is a separate implementation of Go semantics, so it serves
// as the independent backend against Native.
type Interp struct {
	registry *programs.Registry
	logger   *slog.Logger
	imports  []string

	mu    sync.Mutex
	cache *lru.Cache[string, programs.EntryFunc]
}

// NewInterp creates a yaegi backend over reg.
func NewInterp(reg *programs.Registry, opts ...Option) (*Interp, error) {
	o := applyOptions(opts)
	cache, err := lru.New[string, programs.EntryFunc](max(o.cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create interpreter cache: %w", err)
	}
	return &Interp{
		registry: reg,
		logger:   o.logger,
		imports:  o.imports,
		cache:    cache,
	}, nil
}

func (in *Interp) Name() string { return "yaegi" }

// Version reports the yaegi module version linked into the binary.
func (in *Interp) Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == yaegiModule {
			return dep.Version
		}
	}
	return "devel"
}

// Execute implements Runner.
func (in *Interp) Execute(ctx context.Context, program string, input []byte, timeout time.Duration) (ir.Result, error) {
	p, ok := in.registry.Lookup(program)
	if !ok {
		return ir.Result{}, newPrecondition(CodeUnknownProgram, in.Name(), program, "program not registered", nil)
	}
	key := cacheKey(p)
	entry, err := in.entry(key, p)
	if err != nil {
		return ir.Result{}, err
	}
	in.logger.DebugContext(ctx, "executing", "backend", in.Name(), "program", program, "timeout", timeout)

	res, err := race(timeout, in.logger, func() (ir.Result, error) {
		commits, err := entry(input)
		if err != nil {
			return ir.Result{}, newPrecondition(CodeUndecodableInput, in.Name(), program, "decode input", err)
		}
		return okResult(commits, map[string]string{"vm": "yaegi"}), nil
	})
	if err == nil && res.Status == ir.StatusTimeout {
		// The abandoned call may still be running inside this interpreter.
		in.cache.Remove(key)
	}
	return res, err
}

func cacheKey(p programs.Program) string {
	sum := sha256.Sum256([]byte(p.Source))
	return p.ID + "@" + hex.EncodeToString(sum[:8])
}

func (in *Interp) entry(key string, p programs.Program) (programs.EntryFunc, error) {
	if fn, ok := in.cache.Get(key); ok {
		return fn, nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if fn, ok := in.cache.Get(key); ok {
		return fn, nil
	}
	fn, err := in.build(p)
	if err != nil {
		return nil, newPrecondition(CodeBuildFailed, in.Name(), p.ID, "interpret source", err)
	}
	in.cache.Add(key, fn)
	in.logger.Debug("interpreted program", "program", p.ID, "key", key)
	return fn, nil
}

func (in *Interp) build(p programs.Program) (programs.EntryFunc, error) {
	if err := in.checkImports(p); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib: %w", err)
	}
	if _, err := i.Eval(p.Source); err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	v, err := i.Eval(p.Package + ".Commit")
	if err != nil {
		return nil, fmt.Errorf("lookup %s.Commit: %w", p.Package, err)
	}
	fn, ok := v.Interface().(func([]byte) ([]int64, error))
	if !ok {
		return nil, fmt.Errorf("%s.Commit has type %s, want func([]byte) ([]int64, error)", p.Package, v.Type())
	}
	return fn, nil
}

func (in *Interp) checkImports(p programs.Program) error {
	f, err := parser.ParseFile(token.NewFileSet(), p.ID+".go", p.Source, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if f.Name.Name != p.Package {
		return fmt.Errorf("source declares package %s, want %s", f.Name.Name, p.Package)
	}
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("import %s: %w", imp.Path.Value, err)
		}
		if !slices.Contains(in.imports, path) {
			return fmt.Errorf("import %q not allowed", path)
		}
	}
	return nil
}
