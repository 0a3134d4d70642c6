package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kitbash/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Stats      int                        `json:"stats"`
	Components int                        `json:"components"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definitions-dir]",
		Short: "Validate definitions",
		Long: `Validate CUE stat and component definitions.

Every definition is compiled and checked: identifiers, slot and system
keys, rule documents, stat kinds and merge operators, system types and
contribution values. All problems are reported, not just the first.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootOpts.definitionsDir(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadDefinitions(dir)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	result := ValidationResult{
		Stats:      loaded.Library.Stats.Len(),
		Components: loaded.Library.Components.Len(),
		Errors:     validationErrors(loaded.Skipped),
	}
	for _, id := range loaded.Library.Components.IDs() {
		formatter.VerboseLog("Validated component: %s", id)
	}

	if len(result.Errors) == 0 && result.Stats == 0 && result.Components == 0 {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "definitions",
			Message: "no stats or components found",
			Code:    ErrCodeGeneric,
		})
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// validationErrors flattens compile and link failures into one list.
func validationErrors(skipped []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range skipped {
		var de *compiler.DefinitionError
		var ce *compiler.CompileError
		switch {
		case errors.As(err, &de):
			prefix := de.Kind + "." + de.ID
			if de.Err != nil {
				out = append(out, compiler.ValidationError{
					Field:   prefix,
					Message: de.Err.Error(),
					Code:    ErrCodeGeneric,
					Line:    lineOf(de.Pos.IsValid(), de.Pos.Line),
				})
			}
			for _, p := range de.Problems {
				p.Field = prefix + "." + p.Field
				if p.Line == 0 {
					p.Line = lineOf(de.Pos.IsValid(), de.Pos.Line)
				}
				out = append(out, p)
			}
		case errors.As(err, &ce):
			out = append(out, compiler.ValidationError{
				Field:   ce.Field,
				Message: ce.Message,
				Code:    MapFieldToErrorCode(ce.Field),
				Line:    lineOf(ce.Pos.IsValid(), ce.Pos.Line),
			})
		default:
			out = append(out, compiler.ValidationError{
				Field:   "definitions",
				Message: err.Error(),
				Code:    ErrCodeGeneric,
			})
		}
	}
	return out
}

func lineOf(valid bool, line func() int) int {
	if !valid {
		return 0
	}
	return line()
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All definitions valid (%d stat(s), %d component(s))\n", result.Stats, result.Components)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return failure
}
