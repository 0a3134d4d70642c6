package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/metrics"
	"github.com/roach88/kitbash/internal/registry"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/systems"
	"github.com/roach88/kitbash/internal/tree"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database error
	ErrCodeArgs        = "E009" // Malformed command arguments
)

// LoadResult holds the definitions found in a directory.
type LoadResult struct {
	Document  *compiler.Document
	Library   *compiler.Library
	Skipped   []error // compile and link errors of left-out definitions
	FileCount int
}

// LoadError represents an error that stopped a directory from loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDefinitions compiles and links the definitions in dir against the
// built-in rules and system types. Definitions that fail are collected in
// Skipped; a *LoadError is returned only when the directory as a whole
// cannot be read.
func LoadDefinitions(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definitions directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	v, err := registry.LoadDir(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	doc, compileErrs := compiler.Compile(v)
	if doc == nil {
		le := &LoadError{Code: ErrCodeBuildFailed, Message: errors.Join(compileErrs...).Error()}
		var ce *compiler.CompileError
		if len(compileErrs) > 0 && errors.As(compileErrs[0], &ce) {
			le.Pos = ce.Pos
		}
		return nil, le
	}

	rules := rule.DefaultRegistry()
	lib, linkErrs := compiler.Link(doc, compiler.Env{Rules: rules, Systems: systems.NewTable(rules)})

	return &LoadResult{
		Document:  doc,
		Library:   lib,
		Skipped:   append(compileErrs, linkErrs...),
		FileCount: len(files),
	}, nil
}

// MapFieldToErrorCode maps a compile error field path such as
// "component.hilt.stats[0].priority" to a validation code.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "."); i >= 0 {
		last = field[i+1:]
	}
	switch last {
	case "accepts", "when":
		return compiler.ErrInvalidRule
	case "priority":
		return compiler.ErrNegativePriority
	case "kind":
		return compiler.ErrInvalidKind
	case "merge":
		return compiler.ErrInvalidMerge
	case "default":
		return compiler.ErrInvalidDefault
	case "type":
		return compiler.ErrUnknownSystemType
	default:
		return ErrCodeGeneric
	}
}

// session is a loaded registry and an engine over it, shared by the
// commands that build trees.
type session struct {
	registry *registry.Registry
	engine   *tree.Engine
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// openSession loads dir into a registry and wires the engine to the
// logger and a metrics collector. extra is applied after the defaults.
func openSession(opts *RootOptions, dir string, extra ...registry.Option) (*session, error) {
	logger := opts.logger()
	collector := metrics.New()

	rules := rule.DefaultRegistry()
	table := systems.NewTable(rules)
	regOpts := append([]registry.Option{
		registry.WithRules(rules),
		registry.WithLogger(logger),
		registry.OnReload(collector.Reloaded),
	}, extra...)
	reg, err := registry.Load(dir, table, regOpts...)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
		}
		if errors.Is(err, registry.ErrNoFiles) {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: err.Error()}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	engineOpts := []tree.EngineOption{tree.WithLogger(logger), tree.WithObserver(collector)}
	if opts.Config.MaxEventDepth > 0 {
		engineOpts = append(engineOpts, tree.WithMaxEventDepth(opts.Config.MaxEventDepth))
	}

	return &session{
		registry: reg,
		engine:   tree.NewEngine(table, reg, engineOpts...),
		metrics:  collector,
		logger:   logger,
	}, nil
}

// loadErrorCode returns the code of a *LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	return ErrCodeGeneric, err.Error()
}
