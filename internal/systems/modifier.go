package systems

import (
	"fmt"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// TypeModifier is the system type name of Modifier.
const TypeModifier = "modifier"

// Modifier contributes a fixed list of rule-gated stat changes, for
// effects authored on the system rather than the component.
//
// Config: modifiers: [{stat, value, priority, reverse, when}], where when
// is a rule document evaluated against the owning node.
type Modifier struct {
	contributions []stat.Contribution
}

func modifierFactory(rules *rule.Registry) tree.Factory {
	return func(n *tree.Node, tmpl component.SystemTemplate) (tree.Instance, error) {
		cfg := config{system: tmpl.ID, obj: tmpl.Config}
		raw, ok := tmpl.Config["modifiers"]
		if !ok {
			return nil, cfg.errorf("modifiers", "required")
		}
		list, ok := raw.(value.List)
		if !ok {
			return nil, cfg.errorf("modifiers", "want a list, got %s", value.Format(raw))
		}

		m := &Modifier{}
		for i, item := range list {
			obj, ok := item.(value.Object)
			if !ok {
				return nil, cfg.errorf("modifiers", "[%d]: want an object", i)
			}
			c, err := parseModifier(n, rules, config{system: fmt.Sprintf("%s[%d]", tmpl.ID, i), obj: obj})
			if err != nil {
				return nil, err
			}
			m.contributions = append(m.contributions, c)
		}
		return m, nil
	}
}

func parseModifier(n *tree.Node, rules *rule.Registry, cfg config) (stat.Contribution, error) {
	s, err := cfg.stat(n, "stat", "")
	if err != nil {
		return stat.Contribution{}, err
	}
	raw, ok := cfg.obj["value"]
	if !ok {
		return stat.Contribution{}, cfg.errorf("value", "required")
	}
	v, err := s.Kind.Coerce(raw)
	if err != nil {
		return stat.Contribution{}, cfg.errorf("value", "%v", err)
	}
	prio, err := cfg.priority()
	if err != nil {
		return stat.Contribution{}, err
	}

	var when rule.Rule
	if doc, ok := cfg.obj["when"]; ok {
		when, err = rules.Decode(value.ToAny(doc))
		if err != nil {
			return stat.Contribution{}, cfg.errorf("when", "%v", err)
		}
		if rule.HasInline(when) {
			return stat.Contribution{}, cfg.errorf("when", "as_child and as_parent are only valid in slot rules")
		}
	}
	return stat.Contribution{
		Priority: prio,
		Rule:     when,
		Entries:  []stat.Instance{s.Instance(v)},
	}, nil
}

func (m *Modifier) Build(ctx *tree.BuildContext) error {
	for _, c := range m.contributions {
		ctx.Add(c)
	}
	return nil
}
