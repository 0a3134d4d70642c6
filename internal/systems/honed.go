package systems

import (
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// TypeHoned is the system type name of Honed.
const TypeHoned = "honed"

// Honed adds a bonus while its sibling Durability is not broken. A
// component that declares honed without durability is misconfigured and
// fails to build.
//
// Config: stat (string, default "damage"), bonus (int, default 1),
// requires (string, the durability system id, default "durability").
type Honed struct {
	node  *tree.Node
	stat  *stat.Stat
	bonus value.Value
	dep   tree.Key[*Durability]
}

func newHoned(n *tree.Node, tmpl component.SystemTemplate) (tree.Instance, error) {
	cfg := config{system: tmpl.ID, obj: tmpl.Config}
	s, err := cfg.stat(n, "stat", "damage")
	if err != nil {
		return nil, err
	}
	bonus, err := cfg.int("bonus", 1)
	if err != nil {
		return nil, err
	}
	coerced, err := s.Kind.Coerce(value.Int(bonus))
	if err != nil {
		return nil, cfg.errorf("stat", "%v", err)
	}
	requires, err := cfg.string("requires", TypeDurability)
	if err != nil {
		return nil, err
	}
	return &Honed{
		node:  n,
		stat:  s,
		bonus: coerced,
		dep:   tree.NewKey[*Durability](requires),
	}, nil
}

func (h *Honed) Build(ctx *tree.BuildContext) error {
	dur, err := tree.Dependency(h.node, h.dep)
	if err != nil {
		return err
	}
	if dur.Broken() {
		return nil
	}
	ctx.Add(stat.Contribution{
		Entries: []stat.Instance{h.stat.Instance(h.bonus)},
	})
	return nil
}

func (h *Honed) CopyTo(n *tree.Node) (tree.Instance, error) {
	dup := *h
	dup.node = n
	return &dup, nil
}
