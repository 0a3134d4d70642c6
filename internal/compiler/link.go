package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

// Library is a linked, validated set of definitions ready for a tree
// engine. It implements tree.Definitions.
type Library struct {
	Stats      *stat.Catalog
	Components *component.Set
}

// Component returns the component with id.
func (l *Library) Component(id string) (*component.Component, bool) {
	return l.Components.Lookup(id)
}

// Stat returns the stat with key.
func (l *Library) Stat(key string) (*stat.Stat, bool) {
	return l.Stats.Lookup(key)
}

// DefinitionError reports why one stat or component was left out of a
// Library.
type DefinitionError struct {
	Kind     string // "stat" or "component"
	ID       string
	Pos      token.Pos
	Problems []ValidationError
	Err      error // set instead of Problems for construction failures
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d: ", e.Pos.Filename(), e.Pos.Line())
	}
	fmt.Fprintf(&b, "%s %s", e.Kind, e.ID)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, p := range e.Problems {
		fmt.Fprintf(&b, "\n  %s", p.Error())
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Link validates every definition of doc and converts the valid ones.
// Stats are linked first so components can be checked against them.
// Invalid definitions are skipped and reported; the rest still link.
func Link(doc *Document, env Env) (*Library, []error) {
	var errs []error

	stats, _ := stat.NewCatalog()
	for _, def := range doc.Stats {
		if _, dup := stats.Lookup(def.Key); dup {
			errs = append(errs, &DefinitionError{Kind: "stat", ID: def.Key, Pos: def.Pos, Problems: []ValidationError{{
				Field: "key", Message: "stat defined twice", Code: ErrDuplicateDefined, Line: def.Pos.Line(),
			}}})
			continue
		}
		if problems := validateStat(def); len(problems) > 0 {
			errs = append(errs, &DefinitionError{Kind: "stat", ID: def.Key, Pos: def.Pos, Problems: problems})
			continue
		}
		s, err := def.Stat()
		if err == nil {
			err = stats.Add(s)
		}
		if err != nil {
			errs = append(errs, &DefinitionError{Kind: "stat", ID: def.Key, Pos: def.Pos, Err: err})
		}
	}

	env.Stats = stats
	seen := make(map[string]bool)
	var comps []*component.Component
	for _, def := range doc.Components {
		if seen[def.ID] {
			errs = append(errs, &DefinitionError{Kind: "component", ID: def.ID, Pos: def.Pos, Problems: []ValidationError{{
				Field: "id", Message: "component defined twice", Code: ErrDuplicateDefined, Line: def.Pos.Line(),
			}}})
			continue
		}
		seen[def.ID] = true

		if problems := validateComponent(def, env); len(problems) > 0 {
			errs = append(errs, &DefinitionError{Kind: "component", ID: def.ID, Pos: def.Pos, Problems: problems})
			continue
		}
		c, err := def.Component(env)
		if err != nil {
			errs = append(errs, &DefinitionError{Kind: "component", ID: def.ID, Pos: def.Pos, Err: err})
			continue
		}
		comps = append(comps, c)
	}

	set, err := component.NewSet(comps...)
	if err != nil {
		// Duplicates were filtered above.
		errs = append(errs, err)
		set, _ = component.NewSet()
	}
	return &Library{Stats: stats, Components: set}, errs
}

// Stat converts a validated definition.
func (d *StatDef) Stat() (*stat.Stat, error) {
	var def value.Value
	if d.Default != nil {
		v, err := value.FromAny(d.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		def = v
	}
	return stat.New(d.Key, stat.Kind(d.Kind), def, d.Merge)
}

// Component converts a validated definition, decoding its rules with
// env.Rules and resolving stat keys through env.Stats.
func (d *ComponentDef) Component(env Env) (*component.Component, error) {
	opts := []component.Option{component.WithTags(d.Tags...)}

	for _, s := range d.Slots {
		var r rule.Rule
		if s.Accepts != nil {
			decoded, err := env.rules().Decode(s.Accepts)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.Key, err)
			}
			r = decoded
		}
		opts = append(opts, component.WithSlot(s.Key, r, s.Tags...))
	}

	for _, sys := range d.Systems {
		cfg, err := value.FromAny(sys.Config)
		if err != nil {
			return nil, fmt.Errorf("system %s: config: %w", sys.ID, err)
		}
		opts = append(opts, component.WithSystem(sys.ID, sys.Type, cfg.(value.Object)))
	}

	for i, c := range d.Stats {
		contrib := stat.Contribution{Priority: stat.Priority{Value: c.Priority, Reverse: c.Reverse}}
		if c.When != nil {
			r, err := env.rules().Decode(c.When)
			if err != nil {
				return nil, fmt.Errorf("stats[%d].when: %w", i, err)
			}
			contrib.Rule = r
		}
		for _, e := range c.Values {
			s, ok := env.lookupStat(e.Key)
			if !ok {
				return nil, fmt.Errorf("stats[%d]: unknown stat %q", i, e.Key)
			}
			v, err := coerce(s.Kind, e.Value)
			if err != nil {
				return nil, fmt.Errorf("stats[%d].values[%s]: %w", i, e.Key, err)
			}
			contrib.Entries = append(contrib.Entries, s.Instance(v))
		}
		opts = append(opts, component.WithStats(contrib))
	}

	return component.New(d.ID, opts...)
}
