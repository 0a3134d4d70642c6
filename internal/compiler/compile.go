package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Document is the compiled but not yet validated content of a definition
// package: every stat and component found, in source order.
type Document struct {
	Stats      []*StatDef
	Components []*ComponentDef
}

// StatDef is the authored form of a stat.
type StatDef struct {
	Key     string
	Kind    string
	Merge   string
	Default any // nil when omitted
	Pos     token.Pos
}

// ComponentDef is the authored form of a component.
type ComponentDef struct {
	ID      string
	Tags    []string
	Slots   []SlotDef
	Systems []SystemDef
	Stats   []ContributionDef
	Pos     token.Pos
}

// SlotDef is one slot of a ComponentDef. Accepts is a rule document, nil
// when the slot accepts anything.
type SlotDef struct {
	Key     string
	Tags    []string
	Accepts any
	Pos     token.Pos
}

// SystemDef is one system template of a ComponentDef.
type SystemDef struct {
	ID     string
	Type   string
	Config map[string]any
	Pos    token.Pos
}

// ContributionDef is one intrinsic stat block of a ComponentDef.
type ContributionDef struct {
	Priority int
	Reverse  bool
	When     any // rule document, nil when unconditional
	Values   []EntryDef
	Pos      token.Pos
}

// EntryDef is a single stat value inside a contribution.
type EntryDef struct {
	Key   string
	Value any
	Pos   token.Pos
}

// Compile walks the top-level "stat" and "component" structs of v.
//
// A definition that fails to compile is left out of the document and its
// error collected, so one bad component does not hide the rest:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`component: hilt: { slot: blade: {} }`)
//	doc, errs := Compile(v)
func Compile(v cue.Value) (*Document, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	doc := &Document{}
	var errs []error

	if statsVal := v.LookupPath(cue.ParsePath("stat")); statsVal.Exists() {
		iter, err := statsVal.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				def, err := CompileStat(iter.Label(), iter.Value())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				doc.Stats = append(doc.Stats, def)
			}
		}
	}

	if compsVal := v.LookupPath(cue.ParsePath("component")); compsVal.Exists() {
		iter, err := compsVal.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				def, err := CompileComponent(iter.Label(), iter.Value())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				doc.Components = append(doc.Components, def)
			}
		}
	}

	return doc, errs
}

// CompileStat parses the body of `stat: <key>: {...}`.
func CompileStat(key string, v cue.Value) (*StatDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	at := fieldPath{"stat", key}

	def := &StatDef{Key: key, Pos: v.Pos()}

	kind, err := requiredString(v, at, "kind")
	if err != nil {
		return nil, err
	}
	def.Kind = kind

	merge, err := requiredString(v, at, "merge")
	if err != nil {
		return nil, err
	}
	def.Merge = merge

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		def.Default, err = decodeDoc(dv, at.with("default"))
		if err != nil {
			return nil, err
		}
	}
	return def, nil
}

// CompileComponent parses the body of `component: <id>: {...}`.
func CompileComponent(id string, v cue.Value) (*ComponentDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	at := fieldPath{"component", id}

	def := &ComponentDef{ID: id, Pos: v.Pos()}

	var err error
	def.Tags, err = optionalStrings(v, at, "tags")
	if err != nil {
		return nil, err
	}

	def.Slots, err = parseSlots(v, at)
	if err != nil {
		return nil, err
	}

	def.Systems, err = parseSystems(v, at)
	if err != nil {
		return nil, err
	}

	def.Stats, err = parseContributions(v, at)
	if err != nil {
		return nil, err
	}

	return def, nil
}

func parseSlots(v cue.Value, at fieldPath) ([]SlotDef, error) {
	slotsVal := v.LookupPath(cue.ParsePath("slot"))
	if !slotsVal.Exists() {
		return nil, nil
	}

	iter, err := slotsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []SlotDef
	for iter.Next() {
		key := iter.Label()
		sv := iter.Value()
		sat := at.with("slot", key)

		slot := SlotDef{Key: key, Pos: sv.Pos()}
		slot.Tags, err = optionalStrings(sv, sat, "tags")
		if err != nil {
			return nil, err
		}
		if av := sv.LookupPath(cue.ParsePath("accepts")); av.Exists() {
			slot.Accepts, err = decodeDoc(av, sat.with("accepts"))
			if err != nil {
				return nil, err
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func parseSystems(v cue.Value, at fieldPath) ([]SystemDef, error) {
	sysVal := v.LookupPath(cue.ParsePath("system"))
	if !sysVal.Exists() {
		return nil, nil
	}

	iter, err := sysVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var systems []SystemDef
	for iter.Next() {
		id := iter.Label()
		sv := iter.Value()
		sat := at.with("system", id)

		typ, err := requiredString(sv, sat, "type")
		if err != nil {
			return nil, err
		}
		sys := SystemDef{ID: id, Type: typ, Pos: sv.Pos()}

		if cv := sv.LookupPath(cue.ParsePath("config")); cv.Exists() {
			doc, err := decodeDoc(cv, sat.with("config"))
			if err != nil {
				return nil, err
			}
			cfg, ok := doc.(map[string]any)
			if !ok {
				return nil, &CompileError{
					Field:   sat.with("config").String(),
					Message: "config must be a struct",
					Pos:     cv.Pos(),
				}
			}
			sys.Config = cfg
		}
		systems = append(systems, sys)
	}
	return systems, nil
}

func parseContributions(v cue.Value, at fieldPath) ([]ContributionDef, error) {
	statsVal := v.LookupPath(cue.ParsePath("stats"))
	if !statsVal.Exists() {
		return nil, nil
	}

	iter, err := statsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var contribs []ContributionDef
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		cat := at.with(fmt.Sprintf("stats[%d]", i))
		c := ContributionDef{Pos: cv.Pos()}

		if pv := cv.LookupPath(cue.ParsePath("priority")); pv.Exists() {
			p, err := pv.Int64()
			if err != nil {
				return nil, &CompileError{Field: cat.with("priority").String(), Message: "priority must be an int", Pos: pv.Pos()}
			}
			c.Priority = int(p)
		}

		if rv := cv.LookupPath(cue.ParsePath("reverse")); rv.Exists() {
			c.Reverse, err = rv.Bool()
			if err != nil {
				return nil, &CompileError{Field: cat.with("reverse").String(), Message: "reverse must be a bool", Pos: rv.Pos()}
			}
		}

		if wv := cv.LookupPath(cue.ParsePath("when")); wv.Exists() {
			c.When, err = decodeDoc(wv, cat.with("when"))
			if err != nil {
				return nil, err
			}
		}

		valuesVal := cv.LookupPath(cue.ParsePath("values"))
		if !valuesVal.Exists() {
			return nil, &CompileError{Field: cat.with("values").String(), Message: "values is required", Pos: cv.Pos()}
		}
		vIter, err := valuesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for vIter.Next() {
			key := vIter.Label()
			raw, err := decodeDoc(vIter.Value(), cat.with("values", key))
			if err != nil {
				return nil, err
			}
			c.Values = append(c.Values, EntryDef{Key: key, Value: raw, Pos: vIter.Value().Pos()})
		}

		contribs = append(contribs, c)
	}
	return contribs, nil
}

// requiredString reads a concrete string field.
func requiredString(v cue.Value, at fieldPath, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   at.with(name).String(),
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   at.with(name).String(),
			Message: name + " must be a string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// optionalStrings reads a list of strings, nil when absent.
func optionalStrings(v cue.Value, at fieldPath, name string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	var out []string
	if err := fv.Decode(&out); err != nil {
		return nil, &CompileError{
			Field:   at.with(name).String(),
			Message: name + " must be a list of strings",
			Pos:     fv.Pos(),
		}
	}
	return out, nil
}

// decodeDoc turns a concrete CUE value into the generic document tree
// (bool, string, int, float64, []any, map[string]any) that rules and
// values decode from.
func decodeDoc(v cue.Value, at fieldPath) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{
			Field:   at.String(),
			Message: "value must be concrete: " + errors.Details(err, nil),
			Pos:     v.Pos(),
		}
	}
	var doc any
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}
	return doc, nil
}

// fieldPath names the location of a field for error messages, e.g.
// component[core:hilt].slot[blade].accepts.
type fieldPath []string

func (p fieldPath) with(parts ...string) fieldPath {
	out := make(fieldPath, 0, len(p)+len(parts))
	return append(append(out, p...), parts...)
}

func (p fieldPath) String() string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		switch {
		case i+1 < len(p) && (p[i] == "stat" || p[i] == "component" || p[i] == "slot" || p[i] == "system" || p[i] == "values"):
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "%s[%s]", p[i], p[i+1])
			i++
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(p[i])
		}
	}
	return b.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
