package rule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnbound is the panic value (wrapped) raised when an AsChild or
// AsParent rule is evaluated without a prior Bind.
var ErrUnbound = errors.New("inline rule evaluated without binding")

// Node is the read-only view of a tree node that rules evaluate against.
type Node interface {
	// Child returns the node occupying the slot with the given key.
	Child(key string) (Node, bool)

	// Parent returns the parent node, or false for a root.
	Parent() (Node, bool)

	// Root returns the root of the tree containing this node.
	Root() Node

	// HasTag reports whether the node's component carries the tag.
	HasTag(tag string) bool

	// HasSystem reports whether the node has a system with the given id.
	HasSystem(id string) bool

	// Complete reports the whole-tree completeness from the last build.
	Complete() bool
}

// Rule is a predicate over a Node.
type Rule interface {
	// Eval returns true when the predicate holds for n.
	Eval(n Node) bool

	// Name is the registry name of the variant.
	Name() string

	// Args returns the document form of the variant's arguments.
	Args() any
}

// Composite is implemented by rules that contain other rules.
// Walk and Rewrite use it to traverse the rule tree.
type Composite interface {
	Rule
	Terms() []Rule
	WithTerms(terms []Rule) Rule
}

// Path is a sequence of slot keys.
type Path []string

// ParsePath splits "a/b/c" into a Path. The empty string is the empty path.
func ParsePath(s string) Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, "/"))
}

// String joins the path with "/".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Resolve follows path from n. The empty path resolves to n itself.
func Resolve(n Node, path Path) (Node, bool) {
	cur := n
	for _, key := range path {
		next, ok := cur.Child(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits r and its terms in pre-order. Returning false from fn skips
// the terms of the rule just visited.
func Walk(r Rule, fn func(Rule) bool) {
	if r == nil || !fn(r) {
		return
	}
	if c, ok := r.(Composite); ok {
		for _, t := range c.Terms() {
			Walk(t, fn)
		}
	}
}

// Rewrite rebuilds r bottom-up. fn receives each rule after its terms have
// been rewritten and returns the replacement (or the rule itself).
func Rewrite(r Rule, fn func(Rule) Rule) Rule {
	if r == nil {
		return nil
	}
	if c, ok := r.(Composite); ok {
		terms := c.Terms()
		// And/Or hold slices, so rule values are not comparable; always
		// rebuild rather than detect changes.
		rewritten := make([]Rule, len(terms))
		for i, t := range terms {
			rewritten[i] = Rewrite(t, fn)
		}
		r = c.WithTerms(rewritten)
	}
	return fn(r)
}

// Bind returns a copy of r in which every AsChild evaluates against child
// and every AsParent evaluates against parent. r itself is not modified.
func Bind(r Rule, child, parent Node) Rule {
	return Rewrite(r, func(x Rule) Rule {
		switch v := x.(type) {
		case AsChild:
			return boundInline{name: nameAsChild, term: v.Term, target: child}
		case AsParent:
			return boundInline{name: nameAsParent, term: v.Term, target: parent}
		}
		return x
	})
}

// Encode produces the document form of r. Decode(Encode(r)) yields an
// equivalent rule.
func Encode(r Rule) any {
	if r == nil {
		return true
	}
	if c, ok := r.(Constant); ok {
		return c.Value
	}
	return map[string]any{r.Name(): r.Args()}
}

// Format renders r as compact JSON for logs and error messages.
func Format(r Rule) string {
	data, err := json.Marshal(Encode(r))
	if err != nil {
		return fmt.Sprintf("<%s>", r.Name())
	}
	return string(data)
}

// Eval evaluates r against n, treating a nil rule as always true.
func Eval(r Rule, n Node) bool {
	if r == nil {
		return true
	}
	return r.Eval(n)
}

// HasInline reports whether r contains an AsChild or AsParent term. Such
// rules are only meaningful as slot rules.
func HasInline(r Rule) bool {
	found := false
	Walk(r, func(x Rule) bool {
		switch x.(type) {
		case AsChild, AsParent, boundInline:
			found = true
		}
		return !found
	})
	return found
}
