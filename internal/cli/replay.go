package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/engine"
	"github.com/roach88/polydep/internal/harness"
	"github.com/roach88/polydep/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	AnalysisID string // optional - one analysis only
	Scop       string // optional - analyses of one scop only
}

// ReplayDiff is a relation whose recomputed value differs.
type ReplayDiff struct {
	Relation string `json:"relation"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

// ReplayEntry holds the replay result of one analysis.
type ReplayEntry struct {
	AnalysisID string       `json:"analysis_id"`
	Scop       string       `json:"scop"`
	Match      bool         `json:"match"`
	Diffs      []ReplayDiff `json:"diffs,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Analyses []ReplayEntry `json:"analyses"`
	Total    int           `json:"total"`
	AllMatch bool          `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute recorded analyses and verify determinism",
		Long: `Recompute recorded analyses from their stored scop and options and
compare every relation with the recorded one.

Replays are not recorded. An analysis that failed matches when the
replay fails with the same error code.

Exit codes:
  0 - Every replay matched
  1 - One or more replays differ
  2 - Command error (database not found, corrupt record, etc.)

Examples:
  polydep replay --db ./polydep.db
  polydep replay --db ./polydep.db --scop stencil
  polydep replay --db ./polydep.db --id 01936f0e-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.AnalysisID, "id", "", "replay one analysis only")
	cmd.Flags().StringVar(&opts.Scop, "scop", "", "replay analyses of one scop only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ids := []string{opts.AnalysisID}
	if opts.AnalysisID == "" {
		recs, err := st.ListAnalyses(ctx, opts.Scop)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list analyses", err)
		}
		ids = ids[:0]
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
	}

	result := ReplayResult{
		Analyses: make([]ReplayEntry, 0, len(ids)),
		Total:    len(ids),
		AllMatch: true,
	}
	for _, id := range ids {
		report, err := engine.Replay(ctx, st, id)
		if err != nil {
			_ = formatter.Error(engine.ErrorCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay analysis %s", id), err)
		}
		entry := replayEntry(report)
		result.Analyses = append(result.Analyses, entry)
		if !entry.Match {
			result.AllMatch = false
		}
	}

	if formatter.IsJSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func replayEntry(report engine.ReplayReport) ReplayEntry {
	entry := ReplayEntry{
		AnalysisID: report.AnalysisID,
		Scop:       report.Scop,
		Match:      report.Match(),
	}
	if report.Err != nil {
		entry.Error = report.Err.Error()
	}
	for _, d := range report.Diffs {
		entry.Diffs = append(entry.Diffs, ReplayDiff{
			Relation: harness.RelationName(d.Kind, d.Tagged),
			Stored:   d.Stored,
			Replayed: d.Replayed,
		})
	}
	return entry
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay differs from recorded analysis",
		}
	}

	if err := formatter.Encode(response); err != nil {
		return err
	}
	if !result.AllMatch {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No analyses found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d analysis(es)\n", result.Total)
	fmt.Fprintln(w)

	for _, a := range result.Analyses {
		status := "✓"
		if !a.Match {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", status, a.Scop, truncateID(a.AnalysisID))
		if a.Error != "" {
			fmt.Fprintf(w, "  %s\n", a.Error)
		}
		for _, d := range a.Diffs {
			fmt.Fprintf(w, "  %s:\n", d.Relation)
			fmt.Fprintf(w, "    recorded: %s\n", orMissing(d.Stored))
			fmt.Fprintf(w, "    replayed: %s\n", orMissing(d.Replayed))
		}
	}
	fmt.Fprintln(w)

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All analyses verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

func orMissing(rel string) string {
	if rel == "" {
		return "(missing)"
	}
	return rel
}
