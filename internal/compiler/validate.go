package compiler

import (
	"fmt"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedDefinition = "E100" // unsupported definition type

	// Identity errors (E101-E104)
	ErrInvalidID        = "E101" // component id or stat key format
	ErrInvalidKey       = "E102" // slot key or system id format
	ErrDuplicateSlot    = "E103" // slot key declared twice
	ErrDuplicateSystem  = "E104" // system id declared twice
	ErrDuplicateDefined = "E113" // stat or component defined twice

	// Rule errors (E105-E106)
	ErrInvalidRule  = "E105" // rule document does not decode
	ErrInlineInStat = "E106" // as_child/as_parent outside a slot rule

	// Reference errors (E107-E110)
	ErrUnknownSystemType = "E107" // system type not in the system table
	ErrUnknownStat       = "E108" // contribution names an undefined stat
	ErrValueKind         = "E109" // value not coercible to the stat's kind
	ErrNegativePriority  = "E110" // priority below zero

	// Stat errors (E111-E114)
	ErrInvalidKind    = "E111" // unknown stat kind
	ErrInvalidMerge   = "E112" // unknown merge operator or wrong kind for it
	ErrInvalidDefault = "E114" // default not coercible to the kind
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// SystemTypes reports which system types can be instantiated.
// *tree.SystemTable implements it.
type SystemTypes interface {
	Has(typ string) bool
}

// StatLookup resolves stat keys. *stat.Catalog implements it.
type StatLookup interface {
	Lookup(key string) (*stat.Stat, bool)
}

// Env is what definitions are validated against. A nil Systems skips the
// system type check; a nil Stats treats every stat key as unknown.
type Env struct {
	Rules   *rule.Registry
	Systems SystemTypes
	Stats   StatLookup
}

func (env Env) rules() *rule.Registry {
	if env.Rules == nil {
		return rule.DefaultRegistry()
	}
	return env.Rules
}

func (env Env) lookupStat(key string) (*stat.Stat, bool) {
	if env.Stats == nil {
		return nil, false
	}
	return env.Stats.Lookup(key)
}

// Validate checks a compiled definition against env.
// Returns all errors found (does not fail-fast).
func Validate(def any, env Env) []ValidationError {
	switch d := def.(type) {
	case *StatDef:
		return validateStat(d)
	case *ComponentDef:
		return validateComponent(d, env)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported definition type: %T", def),
			Code:    ErrUnsupportedDefinition,
		}}
	}
}

func validateStat(def *StatDef) []ValidationError {
	var errs []ValidationError
	line := def.Pos.Line()

	if err := component.ValidateKey(def.Key); err != nil {
		errs = append(errs, ValidationError{Field: "key", Message: err.Error(), Code: ErrInvalidID, Line: line})
	}

	kind := stat.Kind(def.Kind)
	if !kind.Valid() {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown kind %q, want one of %v", def.Kind, stat.Kinds),
			Code:    ErrInvalidKind,
			Line:    line,
		})
		// Merge and default checks depend on the kind.
		return errs
	}

	if _, err := stat.LookupMerge(def.Merge, kind); err != nil {
		errs = append(errs, ValidationError{Field: "merge", Message: err.Error(), Code: ErrInvalidMerge, Line: line})
	}

	if def.Default != nil {
		if _, err := coerce(kind, def.Default); err != nil {
			errs = append(errs, ValidationError{Field: "default", Message: err.Error(), Code: ErrInvalidDefault, Line: line})
		}
	}

	return errs
}

func validateComponent(def *ComponentDef, env Env) []ValidationError {
	var errs []ValidationError

	if err := component.ValidateID(def.ID); err != nil {
		errs = append(errs, ValidationError{Field: "id", Message: err.Error(), Code: ErrInvalidID, Line: def.Pos.Line()})
	}

	slotKeys := make(map[string]bool)
	for _, s := range def.Slots {
		field := fmt.Sprintf("slot[%s]", s.Key)
		if err := component.ValidateKey(s.Key); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidKey, Line: s.Pos.Line()})
		}
		if slotKeys[s.Key] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate slot key %q", s.Key), Code: ErrDuplicateSlot, Line: s.Pos.Line()})
		}
		slotKeys[s.Key] = true

		if s.Accepts != nil {
			if _, err := env.rules().Decode(s.Accepts); err != nil {
				errs = append(errs, ValidationError{Field: field + ".accepts", Message: err.Error(), Code: ErrInvalidRule, Line: s.Pos.Line()})
			}
		}
	}

	systemIDs := make(map[string]bool)
	for _, sys := range def.Systems {
		field := fmt.Sprintf("system[%s]", sys.ID)
		if err := component.ValidateKey(sys.ID); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidKey, Line: sys.Pos.Line()})
		}
		if systemIDs[sys.ID] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate system id %q", sys.ID), Code: ErrDuplicateSystem, Line: sys.Pos.Line()})
		}
		systemIDs[sys.ID] = true

		if env.Systems != nil && !env.Systems.Has(sys.Type) {
			errs = append(errs, ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown system type %q", sys.Type), Code: ErrUnknownSystemType, Line: sys.Pos.Line()})
		}
		if _, err := value.FromAny(sys.Config); err != nil {
			errs = append(errs, ValidationError{Field: field + ".config", Message: err.Error(), Code: ErrValueKind, Line: sys.Pos.Line()})
		}
	}

	for i, c := range def.Stats {
		field := fmt.Sprintf("stats[%d]", i)
		line := c.Pos.Line()

		if c.Priority < 0 {
			errs = append(errs, ValidationError{Field: field + ".priority", Message: fmt.Sprintf("priority %d is negative", c.Priority), Code: ErrNegativePriority, Line: line})
		}

		if c.When != nil {
			r, err := env.rules().Decode(c.When)
			switch {
			case err != nil:
				errs = append(errs, ValidationError{Field: field + ".when", Message: err.Error(), Code: ErrInvalidRule, Line: line})
			case rule.HasInline(r):
				errs = append(errs, ValidationError{Field: field + ".when", Message: "as_child and as_parent are only valid in slot rules", Code: ErrInlineInStat, Line: line})
			}
		}

		for _, e := range c.Values {
			vfield := fmt.Sprintf("%s.values[%s]", field, e.Key)
			s, ok := env.lookupStat(e.Key)
			if !ok {
				errs = append(errs, ValidationError{Field: vfield, Message: fmt.Sprintf("unknown stat %q", e.Key), Code: ErrUnknownStat, Line: e.Pos.Line()})
				continue
			}
			if _, err := coerce(s.Kind, e.Value); err != nil {
				errs = append(errs, ValidationError{Field: vfield, Message: err.Error(), Code: ErrValueKind, Line: e.Pos.Line()})
			}
		}
	}

	return errs
}

// coerce converts a document value to a Value of kind.
func coerce(kind stat.Kind, doc any) (value.Value, error) {
	v, err := value.FromAny(doc)
	if err != nil {
		return nil, err
	}
	return kind.Coerce(v)
}
