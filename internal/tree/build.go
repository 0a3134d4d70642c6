package tree

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

// BuildContext is handed to every system during a build. It collects the
// node's contributions and registers listeners on the tree's dispatcher.
type BuildContext struct {
	node          *Node
	systemID      string
	contributions []stat.Contribution
}

// Node returns the node being built.
func (c *BuildContext) Node() *Node { return c.node }

// Add appends a contribution for the current node. An empty Source is
// filled with the calling system's id.
func (c *BuildContext) Add(contrib stat.Contribution) {
	if contrib.Source == "" {
		contrib.Source = c.systemID
	}
	c.contributions = append(c.contributions, contrib)
}

// On registers a listener for kind. Listeners are cleared on every build.
func (c *BuildContext) On(kind EventKind, fn Listener) {
	c.node.tree.events.on(kind, c.node, fn)
}

// Stat resolves a stat key against the engine's definitions.
func (c *BuildContext) Stat(key string) (*stat.Stat, bool) {
	return c.node.engine.Stat(key)
}

// MergeStep records one contribution considered during a build.
type MergeStep struct {
	Path     string        `json:"path"`
	Source   string        `json:"source"`
	Priority stat.Priority `json:"priority"`
	Applied  bool          `json:"applied"`
}

// BuildReport summarizes a build for observers and traces.
type BuildReport struct {
	Root       string        `json:"root"`
	Nodes      int           `json:"nodes"`
	Listeners  int           `json:"listeners"`
	Steps      []MergeStep   `json:"steps"`
	Complete   bool          `json:"complete"`
	Incomplete []string      `json:"incomplete,omitempty"`
	Duration   time.Duration `json:"-"`
	Err        error         `json:"-"`
}

// Applied counts steps whose rule passed.
func (r BuildReport) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Applied {
			n++
		}
	}
	return n
}

// BuildObserver is notified after every build, successful or not.
type BuildObserver interface {
	BuildFinished(report BuildReport)
}

type pending struct {
	node    *Node
	contrib stat.Contribution
}

// Build recomputes the tree's listeners, stat table and completeness.
//
// Nodes are visited pre-order in slot declaration order. Each node's
// contributions (intrinsic first, then each system's in template order)
// are split by direction: forward ones are appended to a tree-wide list,
// and each node's reverse block is prepended to a second list, so reverse
// order runs leaf to root. Both lists are stably sorted by priority, then
// forward is folded before reverse. A contribution whose rule fails
// against its node is skipped whole.
//
// A failed build leaves the tree reset and unbuilt.
func (t *Tree) Build() (err error) {
	if t.events.depth > 0 {
		return &Error{Code: ErrCodeReentrantBuild, Message: "build requested from an event listener"}
	}

	start := time.Now()
	report := BuildReport{Root: t.root.component.ID}
	defer func() {
		report.Duration = time.Since(start)
		report.Err = err
		t.lastBuild = report
		t.report(report)
	}()

	t.events.reset()
	t.stats.Reset()
	t.complete = true
	t.incomplete = nil
	t.built = false

	var forward, reverse []pending
	var walkErr error
	t.root.Visit(func(n *Node, _ Path) bool {
		if walkErr != nil {
			return false
		}
		report.Nodes++
		ctx := &BuildContext{node: n}
		ctx.contributions = append(ctx.contributions, n.component.Stats...)
		for _, id := range n.SystemIDs() {
			ctx.systemID = id
			if err := n.systems[id].Build(ctx); err != nil {
				walkErr = fmt.Errorf("build %s at %q: %w", id, n.Path(), err)
				return false
			}
		}
		var block []pending
		for _, c := range ctx.contributions {
			if c.Priority.Reverse {
				block = append(block, pending{node: n, contrib: c})
			} else {
				forward = append(forward, pending{node: n, contrib: c})
			}
		}
		reverse = append(block, reverse...)
		return true
	})
	if walkErr != nil {
		t.events.reset()
		t.complete = false
		return walkErr
	}

	t.root.VisitSlots(func(_ *Node, slot component.Slot, child *Node, path Path) {
		if child == nil && slot.Required() {
			t.complete = false
			t.incomplete = append(t.incomplete, append(Path{}, path...))
		}
	})

	byPriority := func(list []pending) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].contrib.Priority.Value < list[j].contrib.Priority.Value
		})
	}
	byPriority(forward)
	byPriority(reverse)

	for _, list := range [][]pending{forward, reverse} {
		for _, p := range list {
			applied := rule.Eval(p.contrib.Rule, ruleNode{p.node})
			report.Steps = append(report.Steps, MergeStep{
				Path:     p.node.Path().String(),
				Source:   p.contrib.Source,
				Priority: p.contrib.Priority,
				Applied:  applied,
			})
			if !applied {
				continue
			}
			for _, entry := range p.contrib.Entries {
				if err := t.stats.Combine(entry); err != nil {
					t.stats.Reset()
					return fmt.Errorf("merge %s from %s: %w", entry.Stat.Key, p.contrib.Source, err)
				}
			}
		}
	}

	t.built = true
	report.Listeners = t.events.count()
	report.Complete = t.complete
	for _, p := range t.incomplete {
		report.Incomplete = append(report.Incomplete, p.String())
	}
	return nil
}

func (t *Tree) report(r BuildReport) {
	log := t.engine.logger
	if r.Err != nil {
		log.Warn("tree build failed",
			zap.String("root", r.Root),
			zap.Error(r.Err),
		)
	} else {
		log.Debug("tree built",
			zap.String("root", r.Root),
			zap.Int("nodes", r.Nodes),
			zap.Int("contributions", len(r.Steps)),
			zap.Int("applied", r.Applied()),
			zap.Bool("complete", r.Complete),
			zap.Duration("duration", r.Duration),
		)
	}
	if t.engine.observer != nil {
		t.engine.observer.BuildFinished(r)
	}
}

// Stats returns the merged stat table. It is only meaningful while
// Built() is true.
func (t *Tree) Stats() *stat.Table { return t.stats }

// Value returns the merged value of s, or its default.
func (t *Tree) Value(s *stat.Stat) value.Value {
	return t.stats.Value(s)
}
