package systems

import (
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// TypeChildScaling is the system type name of ChildScaling.
const TypeChildScaling = "child_scaling"

// ChildScaling contributes per_child times the number of occupied slots to
// a numeric stat. It merges in the reverse pass by default so it sees
// every forward contribution first, e.g. a weight penalty per attachment.
//
// Config: stat (string, required), per_child (number), priority (int),
// reverse (bool, default true).
type ChildScaling struct {
	node     *tree.Node
	stat     *stat.Stat
	perChild value.Value
	priority stat.Priority
}

func newChildScaling(n *tree.Node, tmpl component.SystemTemplate) (tree.Instance, error) {
	cfg := config{system: tmpl.ID, obj: tmpl.Config}
	s, err := cfg.stat(n, "stat", "")
	if err != nil {
		return nil, err
	}
	if s.Kind != stat.KindInt && s.Kind != stat.KindFloat {
		return nil, cfg.errorf("stat", "stat %q must be numeric", s.Key)
	}
	raw, ok := tmpl.Config["per_child"]
	if !ok {
		return nil, cfg.errorf("per_child", "required")
	}
	per, err := s.Kind.Coerce(raw)
	if err != nil {
		return nil, cfg.errorf("per_child", "%v", err)
	}
	if _, set := tmpl.Config["reverse"]; !set {
		cfg.obj = withDefault(cfg.obj, "reverse", value.Bool(true))
	}
	prio, err := cfg.priority()
	if err != nil {
		return nil, err
	}
	return &ChildScaling{node: n, stat: s, perChild: per, priority: prio}, nil
}

func (c *ChildScaling) Build(ctx *tree.BuildContext) error {
	count := len(c.node.Children())
	var total value.Value
	switch per := c.perChild.(type) {
	case value.Int:
		total = per * value.Int(count)
	case value.Float:
		total = per * value.Float(count)
	}
	ctx.Add(stat.Contribution{
		Priority: c.priority,
		Entries:  []stat.Instance{c.stat.Instance(total)},
	})
	return nil
}

func (c *ChildScaling) CopyTo(n *tree.Node) (tree.Instance, error) {
	dup := *c
	dup.node = n
	return &dup, nil
}

func withDefault(obj value.Object, key string, v value.Value) value.Object {
	out := make(value.Object, len(obj)+1)
	for k, e := range obj {
		out[k] = e
	}
	out[key] = v
	return out
}
