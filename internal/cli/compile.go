package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/component"
	"github.com/roach88/kitbash/internal/rule"
	"github.com/roach88/kitbash/internal/stat"
	"github.com/roach88/kitbash/internal/value"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [definitions-dir]",
		Short: "Compile definitions to canonical JSON",
		Long: `Compile CUE definitions into a linked library and print it as
canonical JSON: sorted keys, no whitespace, rules in their document form.

Any invalid definition fails the command; use validate for details.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, rootOpts.definitionsDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadDefinitions(dir)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	if errs := validationErrors(loaded.Skipped); len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	data, err := value.MarshalCanonical(LibraryValue(loaded.Library))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("encoding library: %v", err))
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.JSON() {
		return formatter.Success(json.RawMessage(data))
	}

	lib := loaded.Library
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d stat(s), %d component(s)\n\n", lib.Stats.Len(), lib.Components.Len())
	fmt.Fprintln(formatter.Writer, "Components:")
	for _, id := range lib.Components.IDs() {
		c, _ := lib.Component(id)
		fmt.Fprintf(formatter.Writer, "  %s: %d slot(s), %d system(s), %d contribution(s)\n",
			c.ID, len(c.Slots), len(c.Systems), len(c.Stats))
	}
	fmt.Fprintln(formatter.Writer)

	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical library to %s\n", opts.Output)
	} else {
		fmt.Fprintln(formatter.Writer, string(data))
	}
	return nil
}

// LibraryValue renders a linked library as a value tree for canonical
// encoding. Stats keep declaration order; components are sorted by id.
func LibraryValue(lib *compiler.Library) value.Object {
	stats := value.List{}
	for _, key := range lib.Stats.Keys() {
		s, _ := lib.Stat(key)
		stats = append(stats, value.Object{
			"key":     value.String(s.Key),
			"kind":    value.String(string(s.Kind)),
			"merge":   value.String(s.Op),
			"default": s.Default,
		})
	}

	components := value.List{}
	for _, id := range lib.Components.IDs() {
		c, _ := lib.Component(id)
		components = append(components, componentValue(c))
	}

	return value.Object{
		"engine_version": value.String(value.EngineVersion),
		"stats":          stats,
		"components":     components,
	}
}

func componentValue(c *component.Component) value.Object {
	slots := value.List{}
	for _, s := range c.Slots {
		obj := value.Object{"key": value.String(s.Key), "tags": stringList(s.Tags)}
		if s.Rule != nil {
			obj["accepts"] = ruleValue(s.Rule)
		}
		slots = append(slots, obj)
	}

	systems := value.List{}
	for _, tmpl := range c.Systems {
		cfg := tmpl.Config
		if cfg == nil {
			cfg = value.Object{}
		}
		systems = append(systems, value.Object{
			"id":     value.String(tmpl.ID),
			"type":   value.String(tmpl.Type),
			"config": cfg,
		})
	}

	contribs := value.List{}
	for _, contrib := range c.Stats {
		contribs = append(contribs, contributionValue(contrib))
	}

	return value.Object{
		"id":      value.String(c.ID),
		"tags":    stringList(c.Tags),
		"slots":   slots,
		"systems": systems,
		"stats":   contribs,
	}
}

func contributionValue(c stat.Contribution) value.Object {
	values := value.Object{}
	for _, in := range c.Entries {
		if raw, ok := in.Raw(); ok {
			values[in.Stat.Key] = raw
		}
	}
	obj := value.Object{
		"priority": value.Int(c.Priority.Value),
		"reverse":  value.Bool(c.Priority.Reverse),
		"values":   values,
	}
	if c.Rule != nil {
		obj["when"] = ruleValue(c.Rule)
	}
	return obj
}

// ruleValue converts a rule's document form. Rules built from documents
// always convert; a failure renders the rule's formatted name instead.
func ruleValue(r rule.Rule) value.Value {
	v, err := value.FromAny(rule.Encode(r))
	if err != nil {
		return value.String(rule.Format(r))
	}
	return v
}

func stringList(items []string) value.List {
	out := make(value.List, len(items))
	for i, s := range items {
		out[i] = value.String(s)
	}
	return out
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, e := range errs {
			cliErrors[i] = CLIError{Code: e.Code, Message: e.Field + ": " + e.Message}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
	}
	return failure
}
