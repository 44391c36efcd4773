package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Scops  int                        `json:"scops"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scop-dir>",
		Short: "Validate scop descriptions without analyzing them",
		Long: `Validate the scops of a CUE package without analyzing them.

Checks that every scop compiles, that names are unique, and that every
loop bound, schedule entry and subscript is affine in the enclosing
iterators and the parameters. Faster than analyze for development
feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scopDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadScops(scopDir, LoadModeCollectAll)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, scopDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}
	validationErrors = append(validationErrors, validateScops(loadResult.Scops, formatter)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Scops))
}

// validateScops runs schema validation on every scop. Fields are
// prefixed with the scop they belong to.
func validateScops(specs []*ir.ScopSpec, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError
	for _, spec := range specs {
		formatter.VerboseLog("Validating scop: %s", spec.Name)
		for _, ve := range compiler.Validate(spec) {
			ve.Field = "scop." + spec.Name + "." + ve.Field
			all = append(all, ve)
		}
	}
	return all
}

func lineOf(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, scops int) error {
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Scops: scops})
	}

	fmt.Fprintf(formatter.Writer, "✓ All scops valid (%d)\n", scops)
	return nil
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
