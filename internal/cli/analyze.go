package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/engine"
	"github.com/roach88/polydep/internal/harness"
	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	AnalysisFlags

	// Scop restricts the analysis to one scop of the package.
	Scop string

	// IDGenerator allows overriding the analysis ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// AnalysisSummary is the printable form of one engine outcome.
type AnalysisSummary struct {
	Scop        string                       `json:"scop"`
	ID          string                       `json:"id,omitempty"`
	Seq         int64                        `json:"seq,omitempty"`
	Status      string                       `json:"status"`
	Cached      bool                         `json:"cached,omitempty"`
	ErrorCode   string                       `json:"error_code,omitempty"`
	Error       string                       `json:"error,omitempty"`
	Relations   []RelationSummary            `json:"relations,omitempty"`
	Candidates  []CandidateSummary           `json:"candidates,omitempty"`
	Recurrences []compiler.RecurrenceWarning `json:"recurrences,omitempty"`
	DCE         *DCESummary                  `json:"dce,omitempty"`
}

// DCESummary reports a dead code elimination run.
type DCESummary struct {
	Iterations int `json:"iterations"`
	Removed    int `json:"removed"`
}

func summarizeDCE(stats *deps.DCEStats) *DCESummary {
	if stats == nil {
		return nil
	}
	return &DCESummary{Iterations: stats.Iterations, Removed: stats.Removed}
}

// RelationSummary is one printed relation.
type RelationSummary struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Size     int    `json:"size"`
}

// CandidateSummary is the reuse candidate report of one read reference.
type CandidateSummary struct {
	Ref        string    `json:"ref"`
	Candidates [][]int64 `json:"candidates"`
	Chosen     int       `json:"chosen"`
	Overridden bool      `json:"overridden"`
}

// AnalyzeResult holds the outcome of an analyze run.
type AnalyzeResult struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Analyzed int               `json:"analyzed"`
	Failed   int               `json:"failed"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	return newAnalyzeCommand(&AnalyzeOptions{RootOptions: rootOpts})
}

func newAnalyzeCommand(opts *AnalyzeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <scop-dir>",
		Short: "Compute dependences of every scop in a CUE package",
		Long: `Compute the dependences of every scop in a CUE package.

Scops are analyzed in declaration order. A scop that cannot be analyzed
(non-affine subscripts, too many instances) is reported and skipped; the
others are still analyzed. With --db every analysis is recorded, and an
analysis of the same scop with the same options is reused.

Exit codes:
  0 - All scops analyzed
  1 - One or more scops were dropped, or the run was interrupted
  2 - Command error (invalid paths, bad flags, database errors)

Examples:
  polydep analyze ./scops
  polydep analyze ./scops --target hls --autosa --dce
  polydep analyze ./scops --autosa --rar-pick r_x=1 --format json
  polydep analyze ./scops --config polydep.yaml --db ./polydep.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Scop, "scop", "", "analyze only the named scop")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, scopDir string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.Resolve(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid analysis options", err)
	}

	scops, err := loadForAnalysis(scopDir, opts.Scop, formatter)
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Database != "" {
		slog.Info("opening database", "path", cfg.Database)
		st, err = store.Open(cfg.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx, st, cfg, opts.IDGenerator)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to resume from database", err)
	}

	outcomes, procErr := eng.Process(ctx, scops)

	result := AnalyzeResult{Analyses: make([]AnalysisSummary, 0, len(outcomes))}
	var storeErr error
	for _, out := range outcomes {
		result.Analyses = append(result.Analyses, summarizeOutcome(out))
		if out.OK() {
			result.Analyzed++
		} else {
			result.Failed++
		}
		if out.StoreErr != nil && storeErr == nil {
			storeErr = out.StoreErr
		}
	}

	if err := outputAnalyze(formatter, result); err != nil {
		return err
	}

	switch {
	case procErr != nil:
		return WrapExitError(ExitFailure, "analysis interrupted", procErr)
	case storeErr != nil:
		return WrapExitError(ExitCommandError, "failed to record analysis", storeErr)
	case result.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d scop(s) dropped", result.Failed))
	}
	return nil
}

// configureLogging installs the default slog handler of a command.
func configureLogging(opts *RootOptions, w io.Writer) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// signalContext derives a context from the command's that is cancelled
// on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, func()) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after the current scop", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// loadForAnalysis loads the scops of dir. Scops that fail to compile are
// reported as warnings; only a package without any usable scop is an
// error.
func loadForAnalysis(scopDir, only string, formatter *OutputFormatter) ([]*ir.ScopSpec, error) {
	loadResult, loadErrors := LoadScops(scopDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadFailure(formatter, loadErrors[0])
	}
	for _, err := range loadErrors {
		slog.Warn("skipping scop", "error", err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, scopDir)

	scops := loadResult.Scops
	if only != "" {
		scops = nil
		for _, spec := range loadResult.Scops {
			if spec.Name == only {
				scops = append(scops, spec)
			}
		}
		if len(scops) == 0 {
			msg := fmt.Sprintf("scop %q not found in %s", only, scopDir)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return nil, NewExitError(ExitCommandError, msg)
		}
	}
	if len(scops) == 0 {
		return nil, loadFailure(formatter, loadErrors[0])
	}
	return scops, nil
}

func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load scops", err)
}

// newEngine creates the engine of a run. With a database the clock
// resumes after the last recorded analysis.
func newEngine(ctx context.Context, st *store.Store, cfg AnalysisConfig, ids engine.IDGenerator) (*engine.Engine, error) {
	options := []engine.Option{
		engine.WithDCE(cfg.DCE),
		engine.WithCache(cfg.Cache),
	}
	if cfg.InstanceLimit > 0 {
		options = append(options, engine.WithInstanceLimit(cfg.InstanceLimit))
	}
	if ids != nil {
		options = append(options, engine.WithIDGenerator(ids))
	}
	if st == nil {
		return engine.New(nil, cfg.Options, options...), nil
	}
	return engine.Resume(ctx, st, cfg.Options, options...)
}

// summarizeOutcome converts an engine outcome for output.
func summarizeOutcome(out engine.Outcome) AnalysisSummary {
	s := AnalysisSummary{
		Scop:        out.Scop,
		ID:          out.ID,
		Seq:         out.Seq,
		Status:      store.StatusOK,
		Cached:      out.Cached,
		Recurrences: out.Recurrences,
		DCE:         summarizeDCE(out.DCE),
	}
	if out.Err != nil {
		s.Status = store.StatusFailed
		s.ErrorCode = engine.ErrorCode(out.Err)
		s.Error = out.Err.Error()
	}
	s.Relations = summarizeRelations(out.Dependences)
	s.Candidates = summarizeCandidates(out.Candidates)
	return s
}

func summarizeRelations(recs []store.DependenceRecord) []RelationSummary {
	out := make([]RelationSummary, len(recs))
	for i, d := range recs {
		out[i] = RelationSummary{
			Name:     harness.RelationName(d.Kind, d.Tagged),
			Relation: d.Relation,
			Size:     d.Size,
		}
	}
	return out
}

func summarizeCandidates(recs []store.CandidateRecord) []CandidateSummary {
	out := make([]CandidateSummary, len(recs))
	for i, c := range recs {
		out[i] = CandidateSummary(c)
	}
	return out
}

// outputAnalyze prints the analyses in the configured format.
func outputAnalyze(formatter *OutputFormatter, result AnalyzeResult) error {
	if formatter.IsJSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    firstErrorCode(result.Analyses),
				Message: fmt.Sprintf("%d scop(s) dropped", result.Failed),
			}
		}
		return formatter.Encode(response)
	}

	w := formatter.Writer
	for _, a := range result.Analyses {
		writeAnalysisText(w, a, formatter.Verbose)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Analyzed %d scop(s), %d dropped\n", result.Analyzed, result.Failed)
	return nil
}

func firstErrorCode(analyses []AnalysisSummary) string {
	for _, a := range analyses {
		if a.ErrorCode != "" {
			return a.ErrorCode
		}
	}
	return ErrCodeGeneric
}

// writeAnalysisText prints one analysis: a status line, then one line
// per relation with the names aligned.
func writeAnalysisText(w io.Writer, a AnalysisSummary, verbose bool) {
	if a.Status == store.StatusFailed {
		fmt.Fprintf(w, "✗ %s: %s\n", a.Scop, a.Error)
		return
	}

	header := a.Scop
	if a.ID != "" {
		header += fmt.Sprintf(" (%s, seq %d)", a.ID, a.Seq)
	}
	if a.Cached {
		header += " [cached]"
	}
	fmt.Fprintf(w, "✓ %s\n", header)

	width := 0
	for _, r := range a.Relations {
		width = max(width, len(r.Name)+1)
	}
	for _, r := range a.Relations {
		fmt.Fprintf(w, "  %-*s  %s\n", width, r.Name+":", r.Relation)
		if verbose {
			fmt.Fprintf(w, "  %-*s  (%d pairs)\n", width, "", r.Size)
		}
	}

	for _, c := range a.Candidates {
		fmt.Fprintf(w, "  reuse %s: %s\n", c.Ref, formatCandidates(c))
	}
	for _, rec := range a.Recurrences {
		fmt.Fprintf(w, "  recurrence [%s]: %s\n", rec.Level, strings.Join(rec.Path, " → "))
	}
	if a.DCE != nil {
		fmt.Fprintf(w, "  dce: %d iteration(s), %d instance(s) removed\n", a.DCE.Iterations, a.DCE.Removed)
	}
}

// formatCandidates renders "0:[1 0] *1:[0 1] (override)" with the
// chosen candidate starred.
func formatCandidates(c CandidateSummary) string {
	parts := make([]string, len(c.Candidates))
	for i, v := range c.Candidates {
		mark := ""
		if i == c.Chosen {
			mark = "*"
		}
		parts[i] = fmt.Sprintf("%s%d:%v", mark, i, v)
	}
	out := strings.Join(parts, " ")
	if c.Overridden {
		out += " (override)"
	}
	return out
}
