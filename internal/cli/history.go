package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database   string
	Scop       string // optional - filter to one scop
	AnalysisID string // optional - show one analysis in full
}

// HistoryEntry is one recorded analysis in the listing.
type HistoryEntry struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Scop      string `json:"scop"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	Options   string `json:"options"`
}

// HistoryResult holds the listing of recorded analyses.
type HistoryResult struct {
	Analyses []HistoryEntry `json:"analyses"`
	Total    int            `json:"total"`
	Scops    []string       `json:"scops"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses",
		Long: `List the analyses recorded in a database, in the order they ran.

With --id, show one analysis in full: its options, every relation and
the reuse candidate reports.

Examples:
  polydep history --db ./polydep.db
  polydep history --db ./polydep.db --scop stencil
  polydep history --db ./polydep.db --id 01936f0e-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scop, "scop", "", "list only analyses of this scop")
	cmd.Flags().StringVar(&opts.AnalysisID, "id", "", "show one analysis in full")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.AnalysisID != "" {
		return showAnalysis(ctx, st, opts.AnalysisID, formatter)
	}

	recs, err := st.ListAnalyses(ctx, opts.Scop)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list analyses", err)
	}

	scops := []string{opts.Scop}
	if opts.Scop == "" {
		if scops, err = st.ListScopNames(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to list scops", err)
		}
	}

	result := HistoryResult{Analyses: make([]HistoryEntry, 0, len(recs)), Total: len(recs), Scops: scops}
	for _, rec := range recs {
		result.Analyses = append(result.Analyses, HistoryEntry{
			Seq:       rec.Seq,
			ID:        rec.ID,
			Scop:      rec.ScopName,
			Status:    rec.Status,
			ErrorCode: rec.ErrorCode,
			Options:   rec.Options,
		})
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(result.Analyses) == 0 {
		fmt.Fprintln(w, "No analyses found in database.")
		return nil
	}
	for _, e := range result.Analyses {
		status := "✓"
		if e.Status == store.StatusFailed {
			status = "✗"
		}
		fmt.Fprintf(w, "[%d] %s %s %s", e.Seq, status, e.Scop, truncateID(e.ID))
		if e.ErrorCode != "" {
			fmt.Fprintf(w, " %s", e.ErrorCode)
		}
		fmt.Fprintln(w)
		if opts.Verbose {
			fmt.Fprintf(w, "     options: %s\n", e.Options)
		}
	}
	fmt.Fprintf(w, "\n%d analysis(es) of %d scop(s)\n", result.Total, len(result.Scops))
	return nil
}

// showAnalysis prints one recorded analysis in full.
func showAnalysis(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter) error {
	rec, err := st.ReadAnalysis(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("analysis %s not found", id), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("analysis %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read analysis", err)
	}

	summary := AnalysisSummary{
		Scop:       rec.ScopName,
		ID:         rec.ID,
		Seq:        rec.Seq,
		Status:     rec.Status,
		ErrorCode:  rec.ErrorCode,
		Error:      rec.ErrorMessage,
		Relations:  summarizeRelations(rec.Dependences),
		Candidates: summarizeCandidates(rec.Candidates),
	}
	if rec.DCEIterations > 0 {
		summary.DCE = &DCESummary{Iterations: rec.DCEIterations, Removed: rec.DCERemoved}
	}

	if formatter.IsJSON() {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	writeAnalysisText(w, summary, formatter.Verbose)
	fmt.Fprintf(w, "  options: %s\n", rec.Options)
	fmt.Fprintf(w, "  analyzer %s, ir %s\n", rec.AnalyzerVersion, rec.IRVersion)
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
