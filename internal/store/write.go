package store

import (
	"context"
	"fmt"
)

// WriteAnalysis inserts an analysis with its dependences and candidates in
// one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same record
// twice reports inserted=false and leaves the first copy untouched.
func (s *Store) WriteAnalysis(ctx context.Context, rec AnalysisRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write analysis: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	liveSizes, err := marshalLiveSizes(rec.DCELiveSizes)
	if err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO analyses
		(id, seq, scop_name, scop_hash, scop, options_hash, options, status,
		 error_code, error_message, dce_iterations, dce_removed, dce_live_sizes,
		 analyzer_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.ScopName,
		rec.ScopHash,
		rec.Scop,
		rec.OptionsHash,
		rec.Options,
		rec.Status,
		rec.ErrorCode,
		rec.ErrorMessage,
		rec.DCEIterations,
		rec.DCERemoved,
		liveSizes,
		rec.AnalyzerVersion,
		rec.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write analysis: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write analysis: rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	for _, d := range rec.Dependences {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dependences (analysis_id, kind, tagged, relation, size)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, d.Kind, boolToInt(d.Tagged), d.Relation, d.Size)
		if err != nil {
			return false, fmt.Errorf("write dependence %s: %w", d.Kind, err)
		}
	}

	for _, c := range rec.Candidates {
		vs, err := marshalCandidates(c.Candidates)
		if err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rar_candidates (analysis_id, ref, candidates, chosen, overridden)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, c.Ref, vs, c.Chosen, boolToInt(c.Overridden))
		if err != nil {
			return false, fmt.Errorf("write candidates %s: %w", c.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write analysis: commit: %w", err)
	}
	return true, nil
}
