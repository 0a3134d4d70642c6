package rule

import "fmt"

const (
	nameConstant  = "const"
	nameNot       = "not"
	nameAnd       = "and"
	nameOr        = "or"
	nameHas       = "has"
	nameAs        = "as"
	nameAsRoot    = "as_root"
	nameIsRoot    = "is_root"
	nameHasTag    = "has_tag"
	nameHasSystem = "has_system"
	nameComplete  = "complete"
	nameAsChild   = "as_child"
	nameAsParent  = "as_parent"
)

// Always and Never are the two constant rules.
var (
	Always Rule = Constant{Value: true}
	Never  Rule = Constant{Value: false}
)

// Constant ignores the node and returns Value.
type Constant struct {
	Value bool
}

func (c Constant) Eval(Node) bool { return c.Value }
func (Constant) Name() string     { return nameConstant }
func (c Constant) Args() any      { return c.Value }

// Not negates Term.
type Not struct {
	Term Rule
}

func (r Not) Eval(n Node) bool { return !Eval(r.Term, n) }
func (Not) Name() string        { return nameNot }
func (r Not) Args() any         { return Encode(r.Term) }
func (r Not) Terms() []Rule     { return []Rule{r.Term} }

func (r Not) WithTerms(terms []Rule) Rule {
	return Not{Term: terms[0]}
}

// And holds when every term holds. An empty And is true.
type And struct {
	Items []Rule
}

func (r And) Eval(n Node) bool {
	for _, t := range r.Items {
		if !Eval(t, n) {
			return false
		}
	}
	return true
}

func (And) Name() string                 { return nameAnd }
func (r And) Args() any                  { return encodeList(r.Items) }
func (r And) Terms() []Rule              { return r.Items }
func (r And) WithTerms(terms []Rule) Rule { return And{Items: terms} }

// Or holds when any term holds. An empty Or is false.
type Or struct {
	Items []Rule
}

func (r Or) Eval(n Node) bool {
	for _, t := range r.Items {
		if Eval(t, n) {
			return true
		}
	}
	return false
}

func (Or) Name() string                 { return nameOr }
func (r Or) Args() any                  { return encodeList(r.Items) }
func (r Or) Terms() []Rule              { return r.Items }
func (r Or) WithTerms(terms []Rule) Rule { return Or{Items: terms} }

// Has holds when Path resolves to a node.
type Has struct {
	Path Path
}

func (r Has) Eval(n Node) bool {
	_, ok := Resolve(n, r.Path)
	return ok
}

func (Has) Name() string { return nameHas }
func (r Has) Args() any  { return r.Path.String() }

// As resolves Path from the evaluated node and evaluates Term there.
// It is false when the path does not resolve.
type As struct {
	Path Path
	Term Rule
}

func (r As) Eval(n Node) bool {
	target, ok := Resolve(n, r.Path)
	if !ok {
		return false
	}
	return Eval(r.Term, target)
}

func (As) Name() string    { return nameAs }
func (r As) Args() any     { return pathRuleArgs(r.Path, r.Term) }
func (r As) Terms() []Rule { return []Rule{r.Term} }

func (r As) WithTerms(terms []Rule) Rule {
	return As{Path: r.Path, Term: terms[0]}
}

// AsRoot is As resolved from the root of the evaluated node's tree.
type AsRoot struct {
	Path Path
	Term Rule
}

func (r AsRoot) Eval(n Node) bool {
	target, ok := Resolve(n.Root(), r.Path)
	if !ok {
		return false
	}
	return Eval(r.Term, target)
}

func (AsRoot) Name() string    { return nameAsRoot }
func (r AsRoot) Args() any     { return pathRuleArgs(r.Path, r.Term) }
func (r AsRoot) Terms() []Rule { return []Rule{r.Term} }

func (r AsRoot) WithTerms(terms []Rule) Rule {
	return AsRoot{Path: r.Path, Term: terms[0]}
}

// IsRoot holds when the node has no parent.
type IsRoot struct{}

func (IsRoot) Eval(n Node) bool {
	_, ok := n.Parent()
	return !ok
}

func (IsRoot) Name() string { return nameIsRoot }
func (IsRoot) Args() any    { return true }

// HasTag holds when the node's component carries Tag.
type HasTag struct {
	Tag string
}

func (r HasTag) Eval(n Node) bool { return n.HasTag(r.Tag) }
func (HasTag) Name() string        { return nameHasTag }
func (r HasTag) Args() any         { return r.Tag }

// HasSystem holds when the node has a system with the given id.
type HasSystem struct {
	ID string
}

func (r HasSystem) Eval(n Node) bool { return n.HasSystem(r.ID) }
func (HasSystem) Name() string        { return nameHasSystem }
func (r HasSystem) Args() any         { return r.ID }

// Complete reads the tree's completeness as of its last build.
type Complete struct{}

func (Complete) Eval(n Node) bool { return n.Complete() }
func (Complete) Name() string     { return nameComplete }
func (Complete) Args() any        { return true }

// AsChild evaluates Term against the candidate child of a compatibility
// check. It must be bound first.
type AsChild struct {
	Term Rule
}

func (r AsChild) Eval(Node) bool {
	panic(fmt.Errorf("%w: %s", ErrUnbound, nameAsChild))
}

func (AsChild) Name() string    { return nameAsChild }
func (r AsChild) Args() any     { return Encode(r.Term) }
func (r AsChild) Terms() []Rule { return []Rule{r.Term} }

func (r AsChild) WithTerms(terms []Rule) Rule {
	return AsChild{Term: terms[0]}
}

// AsParent evaluates Term against the prospective parent of a
// compatibility check. It must be bound first.
type AsParent struct {
	Term Rule
}

func (r AsParent) Eval(Node) bool {
	panic(fmt.Errorf("%w: %s", ErrUnbound, nameAsParent))
}

func (AsParent) Name() string    { return nameAsParent }
func (r AsParent) Args() any     { return Encode(r.Term) }
func (r AsParent) Terms() []Rule { return []Rule{r.Term} }

func (r AsParent) WithTerms(terms []Rule) Rule {
	return AsParent{Term: terms[0]}
}

// boundInline is an AsChild or AsParent after Bind. It encodes exactly
// like the unbound form so bound rules never leak into documents.
type boundInline struct {
	name   string
	term   Rule
	target Node
}

func (b boundInline) Eval(Node) bool {
	if b.target == nil {
		return false
	}
	return Eval(b.term, b.target)
}

func (b boundInline) Name() string { return b.name }
func (b boundInline) Args() any    { return Encode(b.term) }
func (b boundInline) Terms() []Rule { return []Rule{b.term} }

func (b boundInline) WithTerms(terms []Rule) Rule {
	return boundInline{name: b.name, term: terms[0], target: b.target}
}

func encodeList(items []Rule) []any {
	out := make([]any, len(items))
	for i, t := range items {
		out[i] = Encode(t)
	}
	return out
}

func pathRuleArgs(p Path, term Rule) map[string]any {
	return map[string]any{
		"path": p.String(),
		"rule": Encode(term),
	}
}
