package systems

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/tree"
)

// TypeDisplayName is the system type name of DisplayName.
const TypeDisplayName = "display_name"

const partLineKey = "Part: %s"

func init() {
	_ = message.SetString(language.German, partLineKey, "Teil: %s")
	_ = message.SetString(language.French, partLineKey, "Pièce : %s")
}

// DisplayName names the item. On the root it replaces the representation
// name; on any other node it adds a localized part line.
//
// Config: name (string, required).
type DisplayName struct {
	name string
	node *tree.Node
}

func newDisplayName(n *tree.Node, tmpl component.SystemTemplate) (tree.Instance, error) {
	cfg := config{system: tmpl.ID, obj: tmpl.Config}
	name, err := cfg.string("name", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cfg.errorf("name", "required")
	}
	return &DisplayName{name: name, node: n}, nil
}

func (d *DisplayName) Build(ctx *tree.BuildContext) error {
	ctx.On(tree.EventCreateRepresentation, func(ev *tree.Event) error {
		if d.node.IsRoot() {
			ev.Representation.Name = d.name
			return nil
		}
		p := message.NewPrinter(ev.Actor.Locale)
		ev.Representation.Lines = append(ev.Representation.Lines, p.Sprintf(partLineKey, d.name))
		return nil
	})
	return nil
}

func (d *DisplayName) CopyTo(n *tree.Node) (tree.Instance, error) {
	return &DisplayName{name: d.name, node: n}, nil
}
