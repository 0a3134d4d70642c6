package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/kitbash/internal/store"
)

// SavedTree is one row of the list command.
type SavedTree struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Root     string `json:"root"`
	Complete bool   `json:"complete"`
	Seq      int64  `json:"seq"`
	Hash     string `json:"hash"`
}

// openStore opens the configured database.
func openStore(opts *RootOptions) (*store.Store, error) {
	path := opts.DB
	if path == "" {
		path = "kitbash.db"
	}
	return store.Open(path)
}

// storeFailure maps store errors onto exit codes; a missing tree is a
// failure, anything else a command error.
func storeFailure(formatter *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitFailure, "NOT_FOUND", err.Error())
	}
	return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Load a saved tree and print it",
		Long: `Load a saved tree with the current definitions, rebuild it and print
its stats and representation. A tree whose parts no longer fit the
definitions fails to load.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			actor, err := actorFor(locale)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeArgs, err.Error())
			}
			sess, err := openSession(rootOpts, rootOpts.definitionsDir(nil))
			if err != nil {
				code, msg := loadErrorCode(err)
				return formatter.Fail(ExitCommandError, code, msg)
			}
			st, err := openStore(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			defer st.Close()

			t, rec, err := st.LoadTree(cmd.Context(), sess.engine, args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return storeFailure(formatter, err)
				}
				return treeFailure(formatter, err)
			}
			if err := t.Build(); err != nil {
				return treeFailure(formatter, err)
			}
			view, err := newTreeView(t, actor)
			if err != nil {
				return treeFailure(formatter, err)
			}
			view.Name, view.ID = rec.Name, rec.ID

			if formatter.JSON() {
				return formatter.Success(view)
			}
			view.writeText(formatter.Writer)
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "locale for the representation (BCP 47)")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved trees",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			st, err := openStore(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			defer st.Close()

			records, err := st.ListTrees(cmd.Context(), root)
			if err != nil {
				return storeFailure(formatter, err)
			}
			rows := make([]SavedTree, len(records))
			for i, rec := range records {
				rows[i] = SavedTree{
					ID:       rec.ID,
					Name:     rec.Name,
					Root:     rec.Root,
					Complete: rec.Complete,
					Seq:      rec.Seq,
					Hash:     rec.Hash,
				}
			}

			if formatter.JSON() {
				return formatter.Success(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(formatter.Writer, "No saved trees.")
				return nil
			}
			tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROOT\tCOMPLETE\tSEQ")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", r.Name, r.Root, r.Complete, r.Seq)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "only trees whose root is this component")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved tree",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			st, err := openStore(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			defer st.Close()

			if err := st.DeleteTree(cmd.Context(), args[0]); err != nil {
				return storeFailure(formatter, err)
			}
			if formatter.JSON() {
				return formatter.Success(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", args[0])
			return nil
		},
	}
}
