package systems

import (
	"fmt"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// TypeDurability is the system type name of Durability.
const TypeDurability = "durability"

// Durability tracks wear. Use adds wear, Repair removes it, and a worn-out
// part contributes true to its broken stat on the next build. The
// outermost durability also fills the representation bar.
//
// Config: max (int, default 100), broken_stat (string, default "broken",
// optional: no contribution when the stat is undefined).
type Durability struct {
	max    int
	wear   int
	broken *stat.Stat
}

func newDurability(n *tree.Node, tmpl component.SystemTemplate) (tree.Instance, error) {
	cfg := config{system: tmpl.ID, obj: tmpl.Config}
	maxWear, err := cfg.int("max", 100)
	if err != nil {
		return nil, err
	}
	if maxWear <= 0 {
		return nil, cfg.errorf("max", "must be positive")
	}
	key, err := cfg.string("broken_stat", "broken")
	if err != nil {
		return nil, err
	}
	d := &Durability{max: maxWear}
	if s, ok := n.Engine().Stat(key); ok {
		if s.Kind != stat.KindBool {
			return nil, cfg.errorf("broken_stat", "stat %q must be bool", key)
		}
		d.broken = s
	}
	return d, nil
}

// Remaining returns max minus wear.
func (d *Durability) Remaining() int { return d.max - d.wear }

// Max returns the configured maximum.
func (d *Durability) Max() int { return d.max }

// Broken reports whether the part is worn out.
func (d *Durability) Broken() bool { return d.wear >= d.max }

func (d *Durability) Build(ctx *tree.BuildContext) error {
	ctx.On(tree.EventUse, func(ev *tree.Event) error {
		d.wear = min(d.max, d.wear+max(0, ev.Amount))
		return nil
	})
	ctx.On(tree.EventRepair, func(ev *tree.Event) error {
		d.wear = max(0, d.wear-max(0, ev.Amount))
		return nil
	})
	ctx.On(tree.EventCreateRepresentation, func(ev *tree.Event) error {
		if ev.Representation.Bar == nil {
			ev.Representation.Bar = &tree.Bar{Value: d.Remaining(), Max: d.max}
		}
		return nil
	})
	if d.broken != nil && d.Broken() {
		ctx.Add(stat.Contribution{
			Entries: []stat.Instance{d.broken.Instance(value.Bool(true))},
		})
	}
	return nil
}

func (d *Durability) Save() (value.Object, error) {
	return value.Object{"wear": value.Int(d.wear)}, nil
}

func (d *Durability) Load(state value.Object) error {
	raw, ok := state["wear"]
	if !ok {
		return nil
	}
	wear, ok := raw.(value.Int)
	if !ok {
		return fmt.Errorf("wear must be an int, got %s", value.Format(raw))
	}
	if wear < 0 || int(wear) > d.max {
		return fmt.Errorf("wear %d out of range [0, %d]", wear, d.max)
	}
	d.wear = int(wear)
	return nil
}

func (d *Durability) CopyTo(*tree.Node) (tree.Instance, error) {
	dup := *d
	return &dup, nil
}
