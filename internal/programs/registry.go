package programs

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/roach88/zkfuzz/internal/programs/arithmetic"
	"github.com/roach88/zkfuzz/internal/programs/fib"
	"github.com/roach88/zkfuzz/internal/programs/ioecho"
	"github.com/roach88/zkfuzz/internal/programs/panictest"
	"github.com/roach88/zkfuzz/internal/programs/simplestruct"
	"github.com/roach88/zkfuzz/internal/programs/timeouttest"
)

//go:embed fib/fib.go arithmetic/arithmetic.go ioecho/ioecho.go simplestruct/simplestruct.go panictest/panictest.go timeouttest/timeouttest.go
var sources embed.FS

//go:embed schemas/*.schema.json
var schemas embed.FS

//go:embed seeds
var seeds embed.FS

// EntryFunc decodes a raw input document and returns the program's commit
// stream. A decode failure is returned as an error; any other failure
// panics.
type EntryFunc func(raw []byte) ([]int64, error)

// Program is one guest program known to every backend.
type Program struct {
	// ID is the program name used on the command line and in records.
	ID string
	// Package is the Go package name declared by Source.
	Package string
	// Source is the program's Go source, interpreted by VM backends.
	Source string
	// Entry is the compiled form of Source.
	Entry EntryFunc
	// Schema is the JSON Schema every input must satisfy.
	Schema []byte
	// SeedName and Seed are the default seed document.
	SeedName string
	Seed     []byte
}

// Registry resolves program IDs. It is safe for concurrent use.
type Registry struct {
	programs map[string]Program
	order    []string

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewRegistry builds a registry from ps. Duplicate IDs are an error.
func NewRegistry(ps ...Program) (*Registry, error) {
	r := &Registry{
		programs: make(map[string]Program, len(ps)),
		compiled: make(map[string]*jsonschema.Schema),
	}
	for _, p := range ps {
		if p.ID == "" {
			return nil, fmt.Errorf("program with empty id")
		}
		if _, dup := r.programs[p.ID]; dup {
			return nil, fmt.Errorf("duplicate program %q", p.ID)
		}
		r.programs[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	slices.Sort(r.order)
	return r, nil
}

// Lookup returns the program registered under id.
func (r *Registry) Lookup(id string) (Program, bool) {
	p, ok := r.programs[id]
	return p, ok
}

// IDs returns all registered program IDs in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Validate checks raw against the program's input schema. Programs without
// a schema accept any JSON document.
func (r *Registry) Validate(id string, raw []byte) error {
	p, ok := r.programs[id]
	if !ok {
		return fmt.Errorf("unknown program %q", id)
	}
	if len(p.Schema) == 0 {
		return nil
	}
	schema, err := r.schema(p)
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("input does not match %s schema: %v", id, result.Errors)
}

func (r *Registry) schema(p Program) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.compiled[p.ID]; ok {
		return s, nil
	}
	s, err := jsonschema.NewCompiler().Compile(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", p.ID, err)
	}
	r.compiled[p.ID] = s
	return s, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of built-in reference programs.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry(
			builtin("fib", "fib", "fib/fib.go", fib.Commit),
			builtin("arithmetic", "arithmetic", "arithmetic/arithmetic.go", arithmetic.Commit),
			builtin("io_echo", "ioecho", "ioecho/ioecho.go", ioecho.Commit),
			builtin("simple_struct", "simplestruct", "simplestruct/simplestruct.go", simplestruct.Commit),
			builtin("panic_test", "panictest", "panictest/panictest.go", panictest.Commit),
			builtin("timeout_test", "timeouttest", "timeouttest/timeouttest.go", timeouttest.Commit),
		)
		if err != nil {
			panic(err)
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

func builtin(id, pkg, file string, entry EntryFunc) Program {
	src, err := sources.ReadFile(file)
	if err != nil {
		panic(fmt.Sprintf("programs: missing embedded source %s: %v", file, err))
	}
	schema, err := schemas.ReadFile(path.Join("schemas", id+".schema.json"))
	if err != nil {
		panic(fmt.Sprintf("programs: missing embedded schema for %s: %v", id, err))
	}
	seedName, seed := defaultSeed(id)
	return Program{
		ID:       id,
		Package:  pkg,
		Source:   string(src),
		Entry:    entry,
		Schema:   schema,
		SeedName: seedName,
		Seed:     seed,
	}
}

func defaultSeed(id string) (string, []byte) {
	entries, err := seeds.ReadDir("seeds")
	if err != nil {
		return "", nil
	}
	for _, e := range entries {
		name := e.Name()
		if name[:len(name)-len(path.Ext(name))] == id {
			data, err := seeds.ReadFile(path.Join("seeds", name))
			if err != nil {
				return "", nil
			}
			return name, data
		}
	}
	return "", nil
}
