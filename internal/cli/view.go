package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/language"

	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// TreeView is the printed form of a built tree.
type TreeView struct {
	Name           string               `json:"name,omitempty"` // saved name
	ID             string               `json:"id,omitempty"`
	Root           string               `json:"root"`
	Complete       bool                 `json:"complete"`
	Incomplete     []string             `json:"incomplete,omitempty"`
	Stats          json.RawMessage      `json:"stats"` // canonical JSON
	Representation *tree.Representation `json:"representation,omitempty"`

	stats value.Object
}

// newTreeView describes a built tree as seen by actor.
func newTreeView(t *tree.Tree, actor tree.ActorContext) (*TreeView, error) {
	stats := t.Stats().Snapshot()
	data, err := value.MarshalCanonical(stats)
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	rep, err := t.CreateRepresentation(actor)
	if err != nil {
		return nil, err
	}

	view := &TreeView{
		Root:           t.Root().Component().ID,
		Complete:       t.Complete(),
		Stats:          data,
		Representation: rep,
		stats:          stats,
	}
	for _, p := range t.IncompletePaths() {
		view.Incomplete = append(view.Incomplete, p.String())
	}
	return view, nil
}

// writeText prints the view for humans.
func (v *TreeView) writeText(w io.Writer) {
	header := v.Root
	if v.Name != "" {
		header = fmt.Sprintf("%s (%s)", v.Name, v.Root)
	}
	if v.Complete {
		fmt.Fprintf(w, "✓ %s: complete\n", header)
	} else {
		fmt.Fprintf(w, "✗ %s: incomplete\n", header)
		for _, p := range v.Incomplete {
			fmt.Fprintf(w, "  missing: %s\n", p)
		}
	}

	keys := make([]string, 0, len(v.stats))
	for k := range v.stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "\nStats:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, value.Format(v.stats[k]))
	}

	if rep := v.Representation; rep != nil {
		fmt.Fprintf(w, "\n%s\n", rep.Name)
		for _, line := range rep.Lines {
			fmt.Fprintf(w, "  %s\n", line)
		}
		if rep.Bar != nil {
			fmt.Fprintf(w, "  [%d/%d]\n", rep.Bar.Value, rep.Bar.Max)
		}
	}
}

// actorFor parses a BCP 47 locale into an actor. Empty means English.
func actorFor(locale string) (tree.ActorContext, error) {
	actor := tree.DefaultActor()
	if locale == "" {
		return actor, nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return actor, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	actor.Locale = tag
	return actor, nil
}

// treeFailure reports a tree error with its code and returns the exit
// error. Other errors are command errors.
func treeFailure(formatter *OutputFormatter, err error) error {
	if code, ok := tree.CodeOf(err); ok {
		return formatter.Fail(ExitFailure, string(code), err.Error())
	}
	if tree.IsLoadError(err) {
		return formatter.Fail(ExitFailure, "LOAD_FAILED", err.Error())
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
}
