package rule

import (
	"fmt"
	"sort"
	"sync"
)

// Decoder builds a rule from the arguments of its document form.
// reg is passed so composite decoders can decode nested rules.
type Decoder func(reg *Registry, args any) (Rule, error)

// DecodeError reports a malformed rule document.
type DecodeError struct {
	Rule    string // variant name, empty when the document shape is wrong
	Message string
}

func (e *DecodeError) Error() string {
	if e.Rule == "" {
		return "rule: " + e.Message
	}
	return fmt.Sprintf("rule %q: %s", e.Rule, e.Message)
}

// Registry maps variant names to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a registry with no variants.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry returns a new registry holding the built-in variants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, d := range builtinDecoders {
		r.decoders[name] = d
	}
	return r
}

// Register adds a variant. Registering a name twice is an error.
func (r *Registry) Register(name string, d Decoder) error {
	if name == "" {
		return fmt.Errorf("rule: empty variant name")
	}
	if d == nil {
		return fmt.Errorf("rule: nil decoder for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[name]; exists {
		return fmt.Errorf("rule: variant %q already registered", name)
	}
	r.decoders[name] = d
	return nil
}

// Names returns the registered variant names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode builds a rule from its document form: a bare boolean or a
// single-key object naming the variant.
func (r *Registry) Decode(doc any) (Rule, error) {
	switch d := doc.(type) {
	case bool:
		return Constant{Value: d}, nil
	case map[string]any:
		if len(d) != 1 {
			return nil, &DecodeError{Message: fmt.Sprintf("rule object must have exactly one key, got %d", len(d))}
		}
		for name, args := range d {
			r.mu.RLock()
			dec, ok := r.decoders[name]
			r.mu.RUnlock()
			if !ok {
				return nil, &DecodeError{Rule: name, Message: "unknown rule variant"}
			}
			return dec(r, args)
		}
	case nil:
		return nil, &DecodeError{Message: "rule document is null"}
	}
	return nil, &DecodeError{Message: fmt.Sprintf("rule document must be a boolean or an object, got %T", doc)}
}

var builtinDecoders = map[string]Decoder{
	nameConstant: func(_ *Registry, args any) (Rule, error) {
		b, ok := args.(bool)
		if !ok {
			return nil, argError(nameConstant, "expected a boolean", args)
		}
		return Constant{Value: b}, nil
	},
	nameNot: func(reg *Registry, args any) (Rule, error) {
		term, err := reg.Decode(args)
		if err != nil {
			return nil, err
		}
		return Not{Term: term}, nil
	},
	nameAnd: func(reg *Registry, args any) (Rule, error) {
		items, err := decodeList(reg, nameAnd, args)
		if err != nil {
			return nil, err
		}
		return And{Items: items}, nil
	},
	nameOr: func(reg *Registry, args any) (Rule, error) {
		items, err := decodeList(reg, nameOr, args)
		if err != nil {
			return nil, err
		}
		return Or{Items: items}, nil
	},
	nameHas: func(_ *Registry, args any) (Rule, error) {
		p, err := decodePath(nameHas, args)
		if err != nil {
			return nil, err
		}
		return Has{Path: p}, nil
	},
	nameAs: func(reg *Registry, args any) (Rule, error) {
		p, term, err := decodePathRule(reg, nameAs, args)
		if err != nil {
			return nil, err
		}
		return As{Path: p, Term: term}, nil
	},
	nameAsRoot: func(reg *Registry, args any) (Rule, error) {
		p, term, err := decodePathRule(reg, nameAsRoot, args)
		if err != nil {
			return nil, err
		}
		return AsRoot{Path: p, Term: term}, nil
	},
	nameIsRoot: func(_ *Registry, args any) (Rule, error) {
		if err := expectTrue(nameIsRoot, args); err != nil {
			return nil, err
		}
		return IsRoot{}, nil
	},
	nameHasTag: func(_ *Registry, args any) (Rule, error) {
		s, ok := args.(string)
		if !ok || s == "" {
			return nil, argError(nameHasTag, "expected a non-empty tag string", args)
		}
		return HasTag{Tag: s}, nil
	},
	nameHasSystem: func(_ *Registry, args any) (Rule, error) {
		s, ok := args.(string)
		if !ok || s == "" {
			return nil, argError(nameHasSystem, "expected a non-empty system id", args)
		}
		return HasSystem{ID: s}, nil
	},
	nameComplete: func(_ *Registry, args any) (Rule, error) {
		if err := expectTrue(nameComplete, args); err != nil {
			return nil, err
		}
		return Complete{}, nil
	},
	nameAsChild: func(reg *Registry, args any) (Rule, error) {
		term, err := reg.Decode(args)
		if err != nil {
			return nil, err
		}
		return AsChild{Term: term}, nil
	},
	nameAsParent: func(reg *Registry, args any) (Rule, error) {
		term, err := reg.Decode(args)
		if err != nil {
			return nil, err
		}
		return AsParent{Term: term}, nil
	},
}

func argError(name, msg string, got any) error {
	return &DecodeError{Rule: name, Message: fmt.Sprintf("%s, got %T", msg, got)}
}

// expectTrue accepts the argument-less variants written as {is_root: true}.
func expectTrue(name string, args any) error {
	if b, ok := args.(bool); ok && b {
		return nil
	}
	if m, ok := args.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	return argError(name, "expected true", args)
}

func decodeList(reg *Registry, name string, args any) ([]Rule, error) {
	list, ok := args.([]any)
	if !ok {
		return nil, argError(name, "expected a list of rules", args)
	}
	items := make([]Rule, 0, len(list))
	for i, doc := range list {
		item, err := reg.Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodePath(name string, args any) (Path, error) {
	switch p := args.(type) {
	case string:
		return ParsePath(p), nil
	case []any:
		path := make(Path, 0, len(p))
		for _, seg := range p {
			s, ok := seg.(string)
			if !ok || s == "" {
				return nil, argError(name, "path segments must be non-empty strings", seg)
			}
			path = append(path, s)
		}
		return path, nil
	case []string:
		return append(Path{}, p...), nil
	}
	return nil, argError(name, "expected a path string or list", args)
}

func decodePathRule(reg *Registry, name string, args any) (Path, Rule, error) {
	m, ok := args.(map[string]any)
	if !ok {
		return nil, nil, argError(name, "expected {path, rule}", args)
	}
	rawPath, ok := m["path"]
	if !ok {
		return nil, nil, &DecodeError{Rule: name, Message: "missing path"}
	}
	p, err := decodePath(name, rawPath)
	if err != nil {
		return nil, nil, err
	}
	rawRule, ok := m["rule"]
	if !ok {
		return nil, nil, &DecodeError{Rule: name, Message: "missing rule"}
	}
	term, err := reg.Decode(rawRule)
	if err != nil {
		return nil, nil, fmt.Errorf("%s.rule: %w", name, err)
	}
	return p, term, nil
}
