package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/kitbash/internal/tree"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, event.Ref, event.Outcome)
		}
	}

	return buf.String()
}

// builtTree resolves ref to its tree and requires a current build.
func builtTree(refs map[string]*tree.Node, a Assertion) (*tree.Tree, error) {
	n, ok := refs[a.Ref]
	if !ok {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("ref %q", a.Ref),
			Actual:   "ref not bound by any step",
		}
	}
	t := n.Tree()
	if !t.Built() {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("tree of %q built", a.Ref),
			Actual:   "tree needs Build",
		}
	}
	return t, nil
}

func assertStat(refs map[string]*tree.Node, e *tree.Engine, a Assertion) error {
	t, err := builtTree(refs, a)
	if err != nil {
		return err
	}
	s, ok := e.Stat(a.Stat)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("stat %q defined", a.Stat), Actual: "unknown stat"}
	}
	if msg := compareStat(t, s, a.Value); msg != "" {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s of %s", a.Stat, a.Ref), Actual: msg}
	}
	return nil
}

func assertComplete(refs map[string]*tree.Node, a Assertion) error {
	t, err := builtTree(refs, a)
	if err != nil {
		return err
	}
	want, ok := a.Value.(bool)
	if !ok {
		return fmt.Errorf("complete assertion on %q: value must be a bool", a.Ref)
	}
	if t.Complete() != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("complete=%t", want),
			Actual:   fmt.Sprintf("complete=%t", t.Complete()),
		}
	}
	return nil
}

func assertIncomplete(refs map[string]*tree.Node, a Assertion) error {
	t, err := builtTree(refs, a)
	if err != nil {
		return err
	}
	want := a.Paths
	if want == nil {
		want = []string{}
	}
	if msg := compareIncomplete(t, want); msg != "" {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%v", want), Actual: msg}
	}
	return nil
}

func assertRepresentation(refs map[string]*tree.Node, a Assertion) error {
	t, err := builtTree(refs, a)
	if err != nil {
		return err
	}
	rep, err := t.CreateRepresentation(tree.DefaultActor())
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "representation", Actual: err.Error()}
	}
	if a.Name != "" && rep.Name != a.Name {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("name %q", a.Name), Actual: fmt.Sprintf("name %q", rep.Name)}
	}
	if a.Lines != nil && !slices.Equal(rep.Lines, a.Lines) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("lines %q", a.Lines), Actual: fmt.Sprintf("lines %q", rep.Lines)}
	}
	if a.Bar != nil {
		if rep.Bar == nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("bar %v", a.Bar), Actual: "no bar"}
		}
		if rep.Bar.Value != a.Bar[0] || rep.Bar.Max != a.Bar[1] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("bar %d/%d", a.Bar[0], a.Bar[1]),
				Actual:   fmt.Sprintf("bar %d/%d", rep.Bar.Value, rep.Bar.Max),
			}
		}
	}
	return nil
}

// assertTraceCount checks that op was executed exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that ops first appear in the given order.
// Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, e *tree.Engine) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertStat:
			err = assertStat(result.Refs, e, a)
		case AssertComplete:
			err = assertComplete(result.Refs, a)
		case AssertIncomplete:
			err = assertIncomplete(result.Refs, a)
		case AssertRepresentation:
			err = assertRepresentation(result.Refs, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
