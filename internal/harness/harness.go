package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/roach88/kitbash/internal/registry"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/store"
	"github.com/roach88/kitbash/internal/systems"
	"github.com/roach88/kitbash/internal/testutil"
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// errUnexpected stops a scenario after a step failed without an expect.
var errUnexpected = errors.New("unexpected step failure")

// Harness is the scenario execution engine.
type Harness struct {
	engine *tree.Engine
	store  *store.Store
	logger *zap.Logger
	refs   map[string]*tree.Node
	seq    int64
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	observer tree.BuildObserver
}

// WithLogger logs steps and builds to l. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports every build to obs.
func WithObserver(obs tree.BuildObserver) Option {
	return func(o *options) { o.observer = obs }
}

// Run executes a scenario and returns the result.
//
// Each scenario loads its own definitions and saves into a fresh
// in-memory database with sequential ids, so traces are reproducible.
// An error is returned only when the scenario itself cannot run (bad
// definitions, unknown refs); failed expectations land in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	rules := rule.DefaultRegistry()
	table := systems.NewTable(rules)
	reg, err := registry.Load(scenario.Definitions, table,
		registry.WithRules(rules),
		registry.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("tree")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	engineOpts := []tree.EngineOption{tree.WithLogger(o.logger)}
	if o.observer != nil {
		engineOpts = append(engineOpts, tree.WithObserver(o.observer))
	}

	h := &Harness{
		engine: tree.NewEngine(table, reg, engineOpts...),
		store:  st,
		logger: o.logger.With(zap.String("scenario", scenario.Name)),
		refs:   make(map[string]*tree.Node),
	}

	ctx := context.Background()
	result := NewResult()
	result.Refs = h.refs
	for _, skipped := range reg.Skipped() {
		result.AddError(fmt.Sprintf("definition skipped: %v", skipped))
	}

	for i, step := range scenario.Steps {
		err := h.executeStep(ctx, i, step, result)
		if errors.Is(err, errUnexpected) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s %s): %w", i, step.Do, step.Ref, err)
		}
	}

	if result.Pass {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.engine) {
			result.AddError(msg)
		}
	}

	return result, nil
}

// executeStep runs one step, traces it, and checks its expect clause.
// Tree errors are outcomes; any other error aborts the scenario.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	h.seq++
	ev := TraceEvent{
		Seq:     h.seq,
		Op:      step.Do,
		Ref:     step.Ref,
		Args:    stepArgs(step),
		Outcome: OutcomeOK,
	}

	res, err := h.apply(ctx, step)
	if err != nil {
		code, ok := tree.CodeOf(err)
		if !ok {
			return err
		}
		ev.Outcome = string(code)
	}
	ev.Result = res
	result.AddTrace(ev)

	h.logger.Debug("step executed",
		zap.Int("step", i),
		zap.String("op", step.Do),
		zap.String("ref", step.Ref),
		zap.String("outcome", ev.Outcome),
	)

	wantErr := ""
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}
	switch {
	case err != nil && wantErr == "":
		result.AddError(fmt.Sprintf("step %d (%s %s): %v", i, step.Do, step.Ref, err))
		return errUnexpected
	case ev.Outcome != OutcomeOK && ev.Outcome != wantErr:
		result.AddError(fmt.Sprintf("step %d (%s %s): expected error %s, got %s", i, step.Do, step.Ref, wantErr, ev.Outcome))
	case err == nil && wantErr != "":
		result.AddError(fmt.Sprintf("step %d (%s %s): expected error %s, step succeeded", i, step.Do, step.Ref, wantErr))
	}

	if step.Do == OpBuild && err == nil && step.Expect != nil {
		t := h.refs[step.Ref].Tree()
		for _, msg := range checkBuild(h.engine, t, step.Expect) {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", i, step.Do, step.Ref, msg))
		}
	}
	return nil
}

// apply performs the step and returns its trace result.
func (h *Harness) apply(ctx context.Context, step Step) (value.Object, error) {
	if step.Do == OpNew {
		n, err := h.engine.New(step.Component)
		if err != nil {
			return nil, err
		}
		h.refs[step.Ref] = n
		return nil, nil
	}

	n, err := h.ref(step.Ref)
	if err != nil {
		return nil, err
	}

	switch step.Do {
	case OpAttach:
		child, err := h.ref(step.Child)
		if err != nil {
			return nil, err
		}
		parent, key, err := slotParent(n, step.Slot)
		if err != nil {
			return nil, err
		}
		return nil, parent.SetChild(key, child)

	case OpDetach:
		parent, key, err := slotParent(n, step.Slot)
		if err != nil {
			return nil, err
		}
		child, err := parent.RemoveChild(key)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return value.Object{"empty": value.Bool(true)}, nil
		}
		if step.As != "" {
			h.refs[step.As] = child
		}
		return value.Object{"component": value.String(child.Component().ID)}, nil

	case OpBuild:
		t := n.Tree()
		if err := t.Build(); err != nil {
			return nil, err
		}
		return buildResult(t), nil

	case OpUse:
		return nil, n.Tree().Use(tree.DefaultActor(), step.Amount)

	case OpRepair:
		return nil, n.Tree().Repair(tree.DefaultActor(), step.Amount)

	case OpCopy:
		dup, err := n.Copy()
		if err != nil {
			return nil, err
		}
		h.refs[step.As] = dup
		return nil, nil

	case OpSaveLoad:
		rec, err := h.store.SaveTree(ctx, step.Ref, n.Tree())
		if err != nil {
			return nil, err
		}
		loaded, _, err := h.store.LoadTree(ctx, h.engine, step.Ref)
		if err != nil {
			return nil, err
		}
		h.refs[step.Ref] = loaded.Root()
		return value.Object{
			"id":   value.String(rec.ID),
			"root": value.String(rec.Root),
		}, nil

	case OpRepresent:
		actor := tree.DefaultActor()
		if step.Locale != "" {
			tag, err := language.Parse(step.Locale)
			if err != nil {
				return nil, fmt.Errorf("locale: %w", err)
			}
			actor.Locale = tag
		}
		rep, err := n.Tree().CreateRepresentation(actor)
		if err != nil {
			return nil, err
		}
		return representationValue(rep), nil
	}

	return nil, fmt.Errorf("unknown operation %q", step.Do)
}

func (h *Harness) ref(name string) (*tree.Node, error) {
	n, ok := h.refs[name]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", name)
	}
	return n, nil
}

// slotParent splits a slot path into the node owning the last slot and
// the slot key.
func slotParent(n *tree.Node, slotPath string) (*tree.Node, string, error) {
	p := rule.ParsePath(slotPath)
	if len(p) == 0 {
		return nil, "", fmt.Errorf("empty slot path")
	}
	parent, ok := n.Resolve(p[:len(p)-1])
	if !ok {
		return nil, "", fmt.Errorf("no node at %q", p[:len(p)-1].String())
	}
	return parent, p[len(p)-1], nil
}

func stepArgs(step Step) value.Object {
	args := value.Object{}
	for k, v := range map[string]string{
		"component": step.Component,
		"slot":      step.Slot,
		"child":     step.Child,
		"as":        step.As,
		"locale":    step.Locale,
	} {
		if v != "" {
			args[k] = value.String(v)
		}
	}
	if step.Amount != 0 {
		args["amount"] = value.Int(step.Amount)
	}
	return args
}

func buildResult(t *tree.Tree) value.Object {
	res := value.Object{
		"complete": value.Bool(t.Complete()),
		"stats":    t.Stats().Snapshot(),
	}
	if paths := t.IncompletePaths(); len(paths) > 0 {
		list := make(value.List, len(paths))
		for i, p := range paths {
			list[i] = value.String(p.String())
		}
		res["incomplete"] = list
	}
	return res
}

func representationValue(rep *tree.Representation) value.Object {
	obj := value.Object{"name": value.String(rep.Name)}
	if len(rep.Lines) > 0 {
		lines := make(value.List, len(rep.Lines))
		for i, l := range rep.Lines {
			lines[i] = value.String(l)
		}
		obj["lines"] = lines
	}
	if rep.Bar != nil {
		obj["bar"] = value.Object{
			"value": value.Int(rep.Bar.Value),
			"max":   value.Int(rep.Bar.Max),
		}
	}
	return obj
}

// checkBuild compares a built tree against an expect clause.
func checkBuild(e *tree.Engine, t *tree.Tree, want *Expect) []string {
	var msgs []string
	for key, raw := range want.Stats {
		s, ok := e.Stat(key)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("unknown stat %q", key))
			continue
		}
		if msg := compareStat(t, s, raw); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if want.Complete != nil && *want.Complete != t.Complete() {
		msgs = append(msgs, fmt.Sprintf("complete: expected %t, got %t", *want.Complete, t.Complete()))
	}
	if want.Incomplete != nil {
		if msg := compareIncomplete(t, want.Incomplete); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// compareStat coerces the YAML value to the stat's kind before comparing,
// so "weight: 2" matches a float stat.
func compareStat(t *tree.Tree, s *stat.Stat, raw any) string {
	v, err := value.FromAny(raw)
	if err != nil {
		return fmt.Sprintf("stat %s: %v", s.Key, err)
	}
	want, err := s.Kind.Coerce(v)
	if err != nil {
		return fmt.Sprintf("stat %s: %v", s.Key, err)
	}
	got := t.Value(s)
	if !value.Equal(want, got) {
		return fmt.Sprintf("stat %s: expected %s, got %s", s.Key, value.Format(want), value.Format(got))
	}
	return ""
}

func compareIncomplete(t *tree.Tree, want []string) string {
	paths := t.IncompletePaths()
	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		return fmt.Sprintf("incomplete: expected %v, got %v", want, got)
	}
	return ""
}
