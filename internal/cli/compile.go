package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled scops.
type CompilationResult struct {
	IRVersion string         `json:"ir_version"`
	Scops     []*ir.ScopSpec `json:"scops"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ScopCount      int
	StatementCount int
	AccessCount    int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scop-dir>",
		Short: "Compile CUE scop descriptions to canonical IR",
		Long: `Compile the scops of a CUE package to canonical IR.

The output is the canonical JSON form that analyses are hashed and
recorded with, so two packages describing the same scops compile to
identical bytes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, scopDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadScops(scopDir, LoadModeCollectAll)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, scopDir)
	for _, spec := range loadResult.Scops {
		formatter.VerboseLog("Compiled scop: %s", spec.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{IRVersion: ir.IRVersion, Scops: loadResult.Scops}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, calculateStats(result), opts.Output)
}

func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{ScopCount: len(result.Scops)}
	for _, spec := range result.Scops {
		stats.StatementCount += len(spec.Statements)
		for _, st := range spec.Statements {
			stats.AccessCount += len(st.Accesses)
		}
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d scop(s), %d statement(s), %d access(es)\n\n",
		stats.ScopCount, stats.StatementCount, stats.AccessCount)

	fmt.Fprintln(formatter.Writer, "Scops:")
	for _, spec := range result.Scops {
		accesses := 0
		for _, st := range spec.Statements {
			accesses += len(st.Accesses)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %d statement(s), %d access(es)\n",
			spec.Name, len(spec.Statements), accesses)
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single command-level error (exit code 2).
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs every scop that failed to compile.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compiled scops in canonical JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	scops := make([]any, len(result.Scops))
	for i, spec := range result.Scops {
		scops[i] = spec.Canonical()
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"ir_version": result.IRVersion,
		"scops":      scops,
	})
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
