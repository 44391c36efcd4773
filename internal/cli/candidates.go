package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/engine"
)

// CandidatesOptions holds flags for the candidates command.
type CandidatesOptions struct {
	*RootOptions
	AnalysisFlags
	Scop string
}

// ScopCandidates lists the reuse candidate reports of one scop.
type ScopCandidates struct {
	Scop       string             `json:"scop"`
	Candidates []CandidateSummary `json:"candidates"`
	ErrorCode  string             `json:"error_code,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// CandidatesResult holds the candidate reports of every scop.
type CandidatesResult struct {
	Scops []ScopCandidates `json:"scops"`
}

// NewCandidatesCommand creates the candidates command.
func NewCandidatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CandidatesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "candidates <scop-dir>",
		Short: "List reuse vector candidates of every read",
		Long: `List the reuse vector candidates of every external read.

A read whose subscripts leave several loops free has more than one
candidate direction for read-after-read reuse. The heuristic picks the
one along the outermost loop; pass --rar-pick ref=index to analyze with
another one. Only reads with more than one candidate are listed.

Examples:
  polydep candidates ./scops
  polydep candidates ./scops --tiled
  polydep candidates ./scops --rar-pick r_x=1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCandidates(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Scop, "scop", "", "list only the named scop")

	return cmd
}

func runCandidates(opts *CandidatesOptions, scopDir string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.Resolve(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid analysis options", err)
	}
	// Candidates only exist for reuse analysis
	cfg.Options.AutoSA = true

	scops, err := loadForAnalysis(scopDir, opts.Scop, formatter)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx, nil, cfg, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	outcomes, procErr := eng.Process(ctx, scops)

	result := CandidatesResult{Scops: make([]ScopCandidates, 0, len(outcomes))}
	for _, out := range outcomes {
		sc := ScopCandidates{
			Scop:       out.Scop,
			Candidates: summarizeCandidates(out.Candidates),
		}
		if out.Err != nil {
			sc.ErrorCode = engine.ErrorCode(out.Err)
			sc.Error = out.Err.Error()
		}
		result.Scops = append(result.Scops, sc)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputCandidatesText(formatter, result)
	}

	if procErr != nil {
		return WrapExitError(ExitFailure, "analysis interrupted", procErr)
	}
	return nil
}

func outputCandidatesText(formatter *OutputFormatter, result CandidatesResult) {
	w := formatter.Writer
	for _, sc := range result.Scops {
		if sc.Error != "" {
			fmt.Fprintf(w, "✗ %s: %s\n", sc.Scop, sc.Error)
			continue
		}
		if len(sc.Candidates) == 0 {
			fmt.Fprintf(w, "%s: no read with several reuse directions\n", sc.Scop)
			continue
		}
		fmt.Fprintf(w, "%s:\n", sc.Scop)
		for _, c := range sc.Candidates {
			fmt.Fprintf(w, "  %s\n", c.Ref)
			for i, v := range c.Candidates {
				marker := " "
				if i == c.Chosen {
					marker = "*"
				}
				fmt.Fprintf(w, "   %s [%d] %s\n", marker, i, formatVector(v))
			}
			if c.Overridden {
				fmt.Fprintf(w, "     chosen by --rar-pick %s=%d\n", c.Ref, c.Chosen)
			}
		}
	}
}

// formatVector renders a reuse vector as "(0, 1)".
func formatVector(v []int64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
