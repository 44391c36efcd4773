package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/scop"
	"github.com/roach88/polydep/internal/store"
)

// Engine analyzes batches of scops and records the outcomes.
//
// Thread-safety model:
//   - Process and Analyze must not be called concurrently on one Engine
//   - The clock and ID generator are safe for concurrent use
type Engine struct {
	store         *store.Store // nil disables persistence and caching
	clock         *Clock
	ids           IDGenerator
	opts          deps.Options
	dce           bool
	cache         bool
	instanceLimit int
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the logical clock. Used to resume from a known seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the analysis ID generator.
//
// Default: UUIDv7Generator.
// Use testutil.NewSequentialIDGenerator for deterministic tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithDCE enables dead code elimination after the analysis.
func WithDCE(on bool) Option {
	return func(e *Engine) {
		e.dce = on
	}
}

// WithCache controls reuse of stored analyses with identical scop and
// options hashes. Default: on.
func WithCache(on bool) Option {
	return func(e *Engine) {
		e.cache = on
	}
}

// WithInstanceLimit bounds the number of instances enumerated per
// statement. Default: scop.DefaultInstanceLimit.
func WithInstanceLimit(n int) Option {
	return func(e *Engine) {
		e.instanceLimit = n
	}
}

// New creates an Engine. s may be nil, in which case nothing is persisted.
func New(s *store.Store, opts deps.Options, options ...Option) *Engine {
	e := &Engine{
		store:         s,
		clock:         NewClock(),
		ids:           UUIDv7Generator{},
		opts:          opts,
		cache:         true,
		instanceLimit: scop.DefaultInstanceLimit,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Resume creates an Engine whose clock continues after the highest seq in
// the store.
func Resume(ctx context.Context, s *store.Store, opts deps.Options, options ...Option) (*Engine, error) {
	seq, err := s.GetLastSeq(ctx)
	if err != nil {
		return nil, storeFailure("", "", "resume clock", err)
	}
	options = append([]Option{WithClock(NewClockAt(seq))}, options...)
	return New(s, opts, options...), nil
}

// Clock returns the engine's clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Process analyzes specs in order and returns one Outcome per scop
// processed.
//
// ERROR HANDLING: A failing scop is dropped: its Outcome carries the
// error and the next scop is processed. Only context cancellation stops
// the batch; the outcomes completed so far are returned with ctx.Err().
func (e *Engine) Process(ctx context.Context, specs []*ir.ScopSpec) ([]Outcome, error) {
	slog.Info("batch starting", "scops", len(specs), "dce", e.dce)

	outcomes := make([]Outcome, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			slog.Info("batch stopping: context cancelled", "done", len(outcomes))
			return outcomes, err
		}
		out := e.Analyze(ctx, spec)
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			slog.Info("batch stopping: context cancelled", "done", len(outcomes))
			return outcomes, out.Err
		}
		outcomes = append(outcomes, out)
	}

	slog.Info("batch complete", "scops", len(outcomes))
	return outcomes, nil
}

// Analyze runs the full pipeline on one scop. Failures are reported in
// Outcome.Err, never by panicking.
func (e *Engine) Analyze(ctx context.Context, spec *ir.ScopSpec) Outcome {
	out := Outcome{Scop: spec.Name}

	scopHash, err := ir.ScopHash(spec)
	if err != nil {
		out.Err = deps.NewUnsupportedInputError(spec.Name, "hash", err)
		e.logDropped(out)
		return out
	}
	optionsCanonical := e.optionsCanonical()
	optionsHash, err := ir.OptionsHash(optionsCanonical)
	if err != nil {
		out.Err = fmt.Errorf("hash options: %w", err)
		e.logDropped(out)
		return out
	}
	out.ScopHash = scopHash
	out.OptionsHash = optionsHash

	if e.store != nil && e.cache {
		rec, found, err := e.store.FindAnalysis(ctx, scopHash, optionsHash)
		switch {
		case err != nil:
			// A broken cache only costs a recomputation.
			slog.Warn("cache lookup failed", "scop", spec.Name, "error", err)
		case found:
			slog.Info("reusing stored analysis", "scop", spec.Name, "analysis", rec.ID, "seq", rec.Seq)
			return outcomeFromRecord(rec)
		}
	}

	out.ID = e.ids.Generate()
	s, err := scop.Extract(spec, scop.WithInstanceLimit(e.instanceLimit))
	if err != nil {
		out.Err = deps.NewUnsupportedInputError(spec.Name, "extract", err)
		e.finish(ctx, spec, optionsCanonical, &out)
		return out
	}

	a, err := deps.ComputeDependences(ctx, s, e.opts)
	if err != nil {
		out.Err = err
		if ctx.Err() != nil {
			return out
		}
		e.finish(ctx, spec, optionsCanonical, &out)
		return out
	}

	if e.dce {
		var stats deps.DCEStats
		s, a, stats = deps.EliminateDeadCode(s, a)
		out.DCE = &stats
		slog.Info("dead code eliminated", "scop", spec.Name,
			"iterations", stats.Iterations, "removed", stats.Removed)
	}

	out.Result = s
	out.Analysis = a
	out.Dependences = dependenceRecords(a, s)
	out.Candidates = candidateRecords(a.Candidates)
	out.Recurrences = compiler.AnalyzeRecurrences(a.Deps.Get(deps.Flow))

	e.finish(ctx, spec, optionsCanonical, &out)
	return out
}

// finish stamps the outcome and persists it. A store failure is attached
// to the outcome but does not drop the analysis result.
func (e *Engine) finish(ctx context.Context, spec *ir.ScopSpec, optionsCanonical map[string]any, out *Outcome) {
	out.Seq = e.clock.Next()
	if out.Err != nil {
		e.logDropped(*out)
	}
	if e.store == nil {
		return
	}

	rec, err := e.record(spec, optionsCanonical, *out)
	if err == nil {
		_, err = e.store.WriteAnalysis(ctx, rec)
	}
	if err != nil {
		slog.Error("failed to store analysis", "scop", spec.Name, "analysis", out.ID, "error", err)
		out.StoreErr = storeFailure(spec.Name, out.ID, "write analysis", err)
	}
}

func (e *Engine) record(spec *ir.ScopSpec, optionsCanonical map[string]any, out Outcome) (store.AnalysisRecord, error) {
	scopJSON, err := ir.MarshalCanonical(spec.Canonical())
	if err != nil {
		return store.AnalysisRecord{}, err
	}
	optsJSON, err := ir.MarshalCanonical(optionsCanonical)
	if err != nil {
		return store.AnalysisRecord{}, err
	}

	rec := store.AnalysisRecord{
		ID:              out.ID,
		Seq:             out.Seq,
		ScopName:        spec.Name,
		ScopHash:        out.ScopHash,
		Scop:            string(scopJSON),
		OptionsHash:     out.OptionsHash,
		Options:         string(optsJSON),
		Status:          store.StatusOK,
		AnalyzerVersion: ir.AnalyzerVersion,
		IRVersion:       ir.IRVersion,
		Dependences:     out.Dependences,
		Candidates:      out.Candidates,
	}
	if out.DCE != nil {
		rec.DCEIterations = out.DCE.Iterations
		rec.DCERemoved = out.DCE.Removed
		rec.DCELiveSizes = out.DCE.LiveSizes
	}
	if out.Err != nil {
		rec.Status = store.StatusFailed
		rec.ErrorCode = ErrorCode(out.Err)
		rec.ErrorMessage = out.Err.Error()
	}
	return rec, nil
}

// optionsCanonical is the option set that identifies an analysis result.
func (e *Engine) optionsCanonical() map[string]any {
	m := e.opts.Canonical()
	m["dce"] = e.dce
	return m
}

// logDropped logs a scop failure with full context for investigation.
func (e *Engine) logDropped(out Outcome) {
	var ae *deps.AnalysisError
	if errors.As(out.Err, &ae) {
		slog.Error("scop dropped",
			"scop", out.Scop,
			"code", ae.Code,
			"stage", ae.Stage,
			"error", out.Err,
		)
		return
	}
	slog.Error("scop dropped", "scop", out.Scop, "error", out.Err)
}

// ErrorCode returns the code recorded for a failed analysis.
func ErrorCode(err error) string {
	var ae *deps.AnalysisError
	if errors.As(err, &ae) {
		return string(ae.Code)
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "INTERNAL"
}
