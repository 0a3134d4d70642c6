package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/kitbash/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Definitions string // definitions directory
	DB          string // sqlite path for saved trees

	Config config.Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kitbash CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kitbash",
		Short: "kitbash - composable item trees",
		Long: `Assemble items from parts and inspect the result.

Definitions are CUE files declaring stats and components. Components
attach into each other's slots; building a tree merges every part's stat
contributions by priority. Settings come from KITBASH_* environment
variables and are overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Definitions, "definitions", "d", "", "definitions directory (default $KITBASH_DEFINITIONS)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database for saved trees (default $KITBASH_DB)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewAssembleCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// init merges environment configuration under the flags and builds the
// logger.
func (o *RootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg

	flags := cmd.Flags()
	if !flags.Changed("format") {
		o.Format = cfg.Format
	}
	if o.Definitions == "" {
		o.Definitions = cfg.DefinitionsDir
	}
	if o.DB == "" {
		o.DB = cfg.DBPath
	}

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	logger, err := cfg.Logger(o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "logger", err)
	}
	o.Logger = logger
	return nil
}

// logger returns the configured logger, or a no-op logger when the
// command runs without the root (as in tests).
func (o *RootOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// definitionsDir returns dir if given, else the configured directory.
func (o *RootOptions) definitionsDir(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if o.Definitions != "" {
		return o.Definitions
	}
	return "definitions"
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
