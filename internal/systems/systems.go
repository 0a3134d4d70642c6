// Package systems provides the built-in system types: durability,
// display_name, child_scaling, honed and modifier.
package systems

import (
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/tree"
)

// Register adds every built-in system type to table. rules decodes the
// rule documents found in system configs.
func Register(table *tree.SystemTable, rules *rule.Registry) error {
	factories := []struct {
		typ string
		f   tree.Factory
	}{
		{TypeDurability, newDurability},
		{TypeDisplayName, newDisplayName},
		{TypeChildScaling, newChildScaling},
		{TypeHoned, newHoned},
		{TypeModifier, modifierFactory(rules)},
	}
	for _, e := range factories {
		if err := table.Register(e.typ, e.f); err != nil {
			return err
		}
	}
	return nil
}

// NewTable returns a system table holding the built-in types.
func NewTable(rules *rule.Registry) *tree.SystemTable {
	t := tree.NewSystemTable()
	if err := Register(t, rules); err != nil {
		// The table is fresh, so duplicates are impossible.
		panic(err)
	}
	return t
}
