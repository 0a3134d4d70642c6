// Package registry loads component and stat definitions from a directory
// of CUE files and serves them to tree engines.
//
// A Registry is safe for concurrent use. Reload replaces every definition
// at once; trees built before a reload keep the components they were
// instantiated from.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
)

// ErrNoFiles is returned when the definitions directory has no .cue files.
var ErrNoFiles = errors.New("no .cue files found")

// ReloadFunc is called after every successful load with the new library
// and the definitions that were skipped.
type ReloadFunc func(lib *compiler.Library, skipped []error)

// Registry holds the current definition library.
type Registry struct {
	dir     string
	rules   *rule.Registry
	systems *tree.SystemTable
	logger  *zap.Logger

	mu         sync.RWMutex
	lib        *compiler.Library
	skipped    []error
	generation uint64
	hooks      []ReloadFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for skipped definitions and reloads.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithRules sets the rule registry used to decode rule documents.
func WithRules(rules *rule.Registry) Option {
	return func(r *Registry) { r.rules = rules }
}

// OnReload registers fn to run after every successful load.
func OnReload(fn ReloadFunc) Option {
	return func(r *Registry) { r.hooks = append(r.hooks, fn) }
}

// New returns an empty registry for dir. Call Reload to populate it.
func New(dir string, systems *tree.SystemTable, opts ...Option) *Registry {
	r := &Registry{
		dir:     dir,
		rules:   rule.DefaultRegistry(),
		systems: systems,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty, _ := compiler.Link(&compiler.Document{}, compiler.Env{})
	r.lib = empty
	return r
}

// Load creates a registry for dir and loads it.
func Load(dir string, systems *tree.SystemTable, opts ...Option) (*Registry, error) {
	r := New(dir, systems, opts...)
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload compiles the directory again and swaps in the result. Invalid
// definitions are logged and skipped. When the directory as a whole
// cannot be loaded the previous definitions stay in place and the error
// is returned.
func (r *Registry) Reload() error {
	v, err := LoadDir(r.dir)
	if err != nil {
		r.logger.Warn("definition reload failed", zap.String("dir", r.dir), zap.Error(err))
		return err
	}

	doc, compileErrs := compiler.Compile(v)
	if doc == nil {
		err := errors.Join(compileErrs...)
		r.logger.Warn("definition reload failed", zap.String("dir", r.dir), zap.Error(err))
		return err
	}
	lib, linkErrs := compiler.Link(doc, compiler.Env{Rules: r.rules, Systems: r.systems})
	skipped := append(compileErrs, linkErrs...)

	for _, err := range skipped {
		fields := []zap.Field{zap.Error(err)}
		var de *compiler.DefinitionError
		if errors.As(err, &de) {
			fields = append(fields, zap.String("kind", de.Kind), zap.String("id", de.ID))
		}
		r.logger.Warn("skipped definition", fields...)
	}

	r.mu.Lock()
	r.lib = lib
	r.skipped = skipped
	r.generation++
	gen := r.generation
	hooks := r.hooks
	r.mu.Unlock()

	r.logger.Info("definitions loaded",
		zap.String("dir", r.dir),
		zap.Uint64("generation", gen),
		zap.Int("stats", lib.Stats.Len()),
		zap.Int("components", lib.Components.Len()),
		zap.Int("skipped", len(skipped)),
	)

	for _, fn := range hooks {
		fn(lib, skipped)
	}
	return nil
}

// Dir returns the definitions directory.
func (r *Registry) Dir() string { return r.dir }

// Library returns the current library.
func (r *Registry) Library() *compiler.Library {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lib
}

// Skipped returns the errors of definitions left out by the last load.
func (r *Registry) Skipped() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]error, len(r.skipped))
	copy(out, r.skipped)
	return out
}

// Generation counts successful loads.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Component implements tree.Definitions.
func (r *Registry) Component(id string) (*component.Component, bool) {
	return r.Library().Component(id)
}

// Stat implements tree.Definitions.
func (r *Registry) Stat(key string) (*stat.Stat, bool) {
	return r.Library().Stat(key)
}

// LoadDir builds the CUE package in dir.
func LoadDir(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, fmt.Errorf("definitions directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return cue.Value{}, err
	}
	if len(files) == 0 {
		return cue.Value{}, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", err)
	}
	return v, nil
}
