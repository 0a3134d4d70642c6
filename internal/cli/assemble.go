package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/tree"
)

// AssembleOptions holds flags for the assemble command.
type AssembleOptions struct {
	*RootOptions
	Save    string // store the tree under this name
	Locale  string
	Use     int
	Repair  int
	Metrics bool
}

// Attachment is one "slot/path=component" argument.
type Attachment struct {
	Path      rule.Path
	Component string
}

// ParseAttachment parses "blade=blade_steel" or "blade/gem=ruby".
func ParseAttachment(arg string) (Attachment, error) {
	slot, id, ok := strings.Cut(arg, "=")
	if !ok || slot == "" || id == "" {
		return Attachment{}, fmt.Errorf("attachment %q: want slot=component", arg)
	}
	return Attachment{Path: rule.ParsePath(slot), Component: id}, nil
}

// NewAssembleCommand creates the assemble command.
func NewAssembleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssembleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "assemble <root-component> [slot=component ...]",
		Short: "Assemble a tree and print its stats",
		Long: `Instantiate a root component, attach parts into slots, build the tree
and print its merged stats, completeness and representation.

Attachments are applied in order, so a nested slot path such as
"blade/gem=ruby" must come after the part that owns the slot.

Examples:
  kitbash assemble hilt blade=blade_steel pommel=pommel_brass
  kitbash assemble hilt blade=blade_honed --use 3 --locale de
  kitbash assemble hilt blade=blade_steel --save my_sword`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Save, "save", "", "save the tree under this name")
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "locale for the representation (BCP 47)")
	cmd.Flags().IntVar(&opts.Use, "use", 0, "apply this much use after building")
	cmd.Flags().IntVar(&opts.Repair, "repair", 0, "repair the tree by this amount after use")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print build metrics to stderr")

	return cmd
}

func runAssemble(opts *AssembleOptions, rootID string, attachArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	attachments := make([]Attachment, 0, len(attachArgs))
	for _, arg := range attachArgs {
		a, err := ParseAttachment(arg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeArgs, err.Error())
		}
		attachments = append(attachments, a)
	}
	actor, err := actorFor(opts.Locale)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeArgs, err.Error())
	}

	dir := opts.definitionsDir(nil)
	sess, err := openSession(opts.RootOptions, dir)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}
	formatter.VerboseLog("Loaded definitions from %s", dir)

	root, err := assemble(sess.engine, rootID, attachments)
	if err != nil {
		return treeFailure(formatter, err)
	}
	t := root.Tree()
	if err := buildAndWear(t, actor, opts.Use, opts.Repair); err != nil {
		return treeFailure(formatter, err)
	}
	sess.logger.Debug("tree assembled",
		zap.String("root", rootID),
		zap.Int("attachments", len(attachments)),
		zap.Bool("complete", t.Complete()),
	)

	view, err := newTreeView(t, actor)
	if err != nil {
		return treeFailure(formatter, err)
	}

	if opts.Save != "" {
		st, err := openStore(opts.RootOptions)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		defer st.Close()
		rec, err := st.SaveTree(cmd.Context(), opts.Save, t)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		view.Name, view.ID = rec.Name, rec.ID
		formatter.VerboseLog("Saved %s as %s (seq %d)", rec.Name, rec.ID, rec.Seq)
	}

	if opts.Metrics {
		if err := sess.metrics.WriteText(formatter.GetErrWriter()); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
		}
	}

	if formatter.JSON() {
		return formatter.Success(view)
	}
	view.writeText(formatter.Writer)
	return nil
}

// assemble instantiates rootID and applies attachments in order.
func assemble(e *tree.Engine, rootID string, attachments []Attachment) (*tree.Node, error) {
	root, err := e.New(rootID)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		parentPath, key := a.Path[:len(a.Path)-1], a.Path[len(a.Path)-1]
		parent, ok := root.Resolve(parentPath)
		if !ok {
			return nil, fmt.Errorf("attach %s: no part at %q", a.Path, parentPath.String())
		}
		child, err := e.New(a.Component)
		if err != nil {
			return nil, err
		}
		if err := parent.SetChild(key, child); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// buildAndWear builds t, then applies use and repair, rebuilding after
// each so the printed stats reflect the wear.
func buildAndWear(t *tree.Tree, actor tree.ActorContext, use, repair int) error {
	if err := t.Build(); err != nil {
		return err
	}
	if use > 0 {
		if err := t.Use(actor, use); err != nil {
			return err
		}
		if err := t.Build(); err != nil {
			return err
		}
	}
	if repair > 0 {
		if err := t.Repair(actor, repair); err != nil {
			return err
		}
		if err := t.Build(); err != nil {
			return err
		}
	}
	return nil
}
