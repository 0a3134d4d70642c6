package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

var (
	damageStat = stat.MustNew("damage", stat.KindInt, nil, stat.MergeAdd)
	orderStat  = stat.MustNew("order", stat.KindString, nil, stat.MergeAppend)
)

// counterSystem counts EventUse wear and persists the count.
type counterSystem struct {
	count int
}

func (c *counterSystem) Build(ctx *BuildContext) error {
	ctx.On(EventUse, func(ev *Event) error {
		c.count += ev.Amount
		return nil
	})
	return nil
}

func (c *counterSystem) Save() (value.Object, error) {
	return value.Object{"count": value.Int(c.count)}, nil
}

func (c *counterSystem) Load(state value.Object) error {
	n, ok := state["count"].(value.Int)
	if !ok {
		return fmt.Errorf("count must be an int")
	}
	c.count = int(n)
	return nil
}

func (c *counterSystem) CopyTo(*Node) (Instance, error) {
	return &counterSystem{count: c.count}, nil
}

// needsCounter fails its build unless a sibling "counter" exists.
type needsCounter struct {
	node *Node
}

func (s *needsCounter) Build(*BuildContext) error {
	_, err := Dependency(s.node, NewKey[*counterSystem]("counter"))
	return err
}

// rebuilder tries to rebuild its own tree from a listener.
type rebuilder struct {
	node *Node
	err  error
}

func (r *rebuilder) Build(ctx *BuildContext) error {
	ctx.On(EventRepair, func(*Event) error {
		r.err = r.node.Tree().Build()
		return r.err
	})
	return nil
}

// echo re-dispatches every EventUse it sees.
type echo struct {
	node *Node
}

func (e *echo) Build(ctx *BuildContext) error {
	ctx.On(EventUse, func(ev *Event) error {
		return e.node.Tree().Dispatch(&Event{Kind: EventUse, Amount: ev.Amount})
	})
	return nil
}

// namer decorates representations with its config "line".
type namer struct {
	line string
}

func (n *namer) Build(ctx *BuildContext) error {
	ctx.On(EventCreateRepresentation, func(ev *Event) error {
		ev.Representation.Lines = append(ev.Representation.Lines, n.line)
		return nil
	})
	return nil
}

// letter contributes its config "letter" to the order stat.
type letter struct {
	text     string
	priority stat.Priority
}

func (l *letter) Build(ctx *BuildContext) error {
	ctx.Add(stat.Contribution{
		Priority: l.priority,
		Entries:  []stat.Instance{orderStat.Instance(value.String(l.text))},
	})
	return nil
}

func testSystems() *SystemTable {
	st := NewSystemTable()
	st.MustRegister("counter", func(*Node, component.SystemTemplate) (Instance, error) {
		return &counterSystem{}, nil
	})
	st.MustRegister("needs_counter", func(n *Node, _ component.SystemTemplate) (Instance, error) {
		return &needsCounter{node: n}, nil
	})
	st.MustRegister("rebuilder", func(n *Node, _ component.SystemTemplate) (Instance, error) {
		return &rebuilder{node: n}, nil
	})
	st.MustRegister("echo", func(n *Node, _ component.SystemTemplate) (Instance, error) {
		return &echo{node: n}, nil
	})
	st.MustRegister("namer", func(_ *Node, tmpl component.SystemTemplate) (Instance, error) {
		line, _ := tmpl.Config["line"].(value.String)
		return &namer{line: string(line)}, nil
	})
	st.MustRegister("letter", func(_ *Node, tmpl component.SystemTemplate) (Instance, error) {
		text, _ := tmpl.Config["letter"].(value.String)
		prio, _ := tmpl.Config["priority"].(value.Int)
		rev, _ := tmpl.Config["reverse"].(value.Bool)
		return &letter{text: string(text), priority: stat.Priority{Value: int(prio), Reverse: bool(rev)}}, nil
	})
	return st
}

func contrib(s *stat.Stat, v value.Value, prio int, reverse bool) stat.Contribution {
	return stat.Contribution{
		Priority: stat.Priority{Value: prio, Reverse: reverse},
		Entries:  []stat.Instance{s.Instance(v)},
	}
}

func letterContrib(text string, prio int, reverse bool) stat.Contribution {
	return contrib(orderStat, value.String(text), prio, reverse)
}

func testComponents() []*component.Component {
	return []*component.Component{
		component.MustNew("hilt",
			component.WithTags("handle"),
			component.WithSlot("blade", rule.HasTag{Tag: "sharp"}, component.TagRequired),
			component.WithSlot("pommel", nil),
			component.WithSystem("counter", "counter", nil),
		),
		component.MustNew("blade_steel",
			component.WithTags("sharp", "metal"),
			component.WithStats(contrib(damageStat, value.Int(5), 0, false)),
			component.WithSystem("counter", "counter", nil),
		),
		component.MustNew("blade_wood",
			component.WithTags("wood"),
			component.WithStats(contrib(damageStat, value.Int(1), 0, false)),
		),
		component.MustNew("pommel_socket",
			component.WithSlot("gem", nil, component.TagRequired),
		),
		component.MustNew("gem"),
		component.MustNew("two_hander",
			component.WithTags("two_handed"),
			component.WithSlot("blade", rule.AsChild{Term: rule.And{Items: []rule.Rule{
				rule.HasTag{Tag: "sharp"},
				rule.AsParent{Term: rule.HasTag{Tag: "two_handed"}},
			}}}),
		),
		component.MustNew("ordered",
			component.WithStats(
				letterContrib("C", 0, true),
				letterContrib("B", 5, false),
				letterContrib("A", 0, false),
			),
		),
		component.MustNew("chain",
			component.WithStats(letterContrib("r1", 0, true), letterContrib("r2", 0, true), letterContrib("f", 0, false)),
			component.WithSlot("x", nil),
			component.WithSlot("y", nil),
		),
		component.MustNew("link_x",
			component.WithStats(letterContrib("x1", 0, true), letterContrib("x2", 0, true)),
		),
		component.MustNew("link_y",
			component.WithStats(letterContrib("y", 0, true)),
		),
		component.MustNew("gated",
			component.WithStats(
				stat.Contribution{
					Rule:     rule.Complete{},
					Entries:  []stat.Instance{damageStat.Instance(value.Int(100))},
					Priority: stat.Priority{},
				},
				stat.Contribution{
					Rule:    rule.IsRoot{},
					Entries: []stat.Instance{damageStat.Instance(value.Int(1)), orderStat.Instance(value.String("root"))},
				},
			),
			component.WithSlot("part", nil, component.TagRequired),
		),
		component.MustNew("broken_config", component.WithSystem("helper", "needs_counter", nil)),
		component.MustNew("loop", component.WithSystem("echo", "echo", nil)),
		component.MustNew("self_builder", component.WithSystem("rebuilder", "rebuilder", nil)),
		component.MustNew("named",
			component.WithSystem("first", "namer", value.Object{"line": value.String("one")}),
			component.WithSystem("second", "namer", value.Object{"line": value.String("two")}),
			component.WithSlot("part", nil),
		),
		component.MustNew("named_part",
			component.WithSystem("label", "namer", value.Object{"line": value.String("part")}),
		),
		component.MustNew("letters",
			component.WithSystem("late", "letter", value.Object{"letter": value.String("S"), "priority": value.Int(1)}),
			component.WithStats(letterContrib("I", 1, false)),
		),
		component.MustNew("ghost", component.WithSystem("spook", "unregistered", nil)),
	}
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	set, err := component.NewSet(testComponents()...)
	require.NoError(t, err)
	stats, err := stat.NewCatalog(damageStat, orderStat)
	require.NoError(t, err)
	return NewEngine(testSystems(), StaticDefinitions{Components: set, Stats: stats}, opts...)
}

func mustNew(t *testing.T, e *Engine, id string) *Node {
	t.Helper()
	n, err := e.New(id)
	require.NoError(t, err)
	return n
}

func mustBuild(t *testing.T, n *Node) *Tree {
	t.Helper()
	tr := n.Tree()
	require.NoError(t, tr.Build())
	return tr
}

type recordingObserver struct {
	reports []BuildReport
}

func (r *recordingObserver) BuildFinished(report BuildReport) {
	r.reports = append(r.reports, report)
}
