package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const analysisColumns = `
	id, seq, scop_name, scop_hash, scop, options_hash, options, status,
	error_code, error_message, dce_iterations, dce_removed, dce_live_sizes,
	analyzer_version, ir_version`

// ReadAnalysis retrieves a single analysis by ID, with its dependences and
// candidates.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadAnalysis(ctx context.Context, id string) (AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+`
		FROM analyses
		WHERE id = ?
	`, id)

	rec, err := scanAnalysis(row)
	if err != nil {
		return AnalysisRecord{}, err
	}
	return rec, s.fillAnalysis(ctx, &rec)
}

// FindAnalysis returns the most recent successful analysis of the given scop
// and options. found is false when there is none.
func (s *Store) FindAnalysis(ctx context.Context, scopHash, optionsHash string) (rec AnalysisRecord, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+`
		FROM analyses
		WHERE scop_hash = ? AND options_hash = ? AND status = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scopHash, optionsHash, StatusOK)

	rec, err = scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisRecord{}, false, nil
	}
	if err != nil {
		return AnalysisRecord{}, false, err
	}
	if err := s.fillAnalysis(ctx, &rec); err != nil {
		return AnalysisRecord{}, false, err
	}
	return rec, true, nil
}

// ListAnalyses returns analysis summaries (without relations) in seq order.
// An empty scopName lists every scop.
//
// Returns an empty slice (not nil) if there are no records.
func (s *Store) ListAnalyses(ctx context.Context, scopName string) ([]AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+analysisColumns+`
		FROM analyses
		WHERE ? = '' OR scop_name = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scopName, scopName)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	recs := []AnalysisRecord{}
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return recs, nil
}

// ReadDependences returns the relations of an analysis ordered by kind,
// untagged before tagged.
func (s *Store) ReadDependences(ctx context.Context, analysisID string) ([]DependenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, tagged, relation, size
		FROM dependences
		WHERE analysis_id = ?
		ORDER BY kind COLLATE BINARY ASC, tagged ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query dependences: %w", err)
	}
	defer rows.Close()

	deps := []DependenceRecord{}
	for rows.Next() {
		var d DependenceRecord
		var tagged int
		if err := rows.Scan(&d.Kind, &tagged, &d.Relation, &d.Size); err != nil {
			return nil, fmt.Errorf("scan dependence: %w", err)
		}
		d.Tagged = tagged == 1
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependences: %w", err)
	}
	return deps, nil
}

// ReadCandidates returns the RAR candidate reports of an analysis ordered
// by reference name.
func (s *Store) ReadCandidates(ctx context.Context, analysisID string) ([]CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, candidates, chosen, overridden
		FROM rar_candidates
		WHERE analysis_id = ?
		ORDER BY ref COLLATE BINARY ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := []CandidateRecord{}
	for rows.Next() {
		var c CandidateRecord
		var vsJSON string
		var overridden int
		if err := rows.Scan(&c.Ref, &vsJSON, &c.Chosen, &overridden); err != nil {
			return nil, fmt.Errorf("scan candidates: %w", err)
		}
		vs, err := unmarshalCandidates(vsJSON)
		if err != nil {
			return nil, err
		}
		c.Candidates = vs
		c.Overridden = overridden == 1
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *Store) fillAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	deps, err := s.ReadDependences(ctx, rec.ID)
	if err != nil {
		return err
	}
	cands, err := s.ReadCandidates(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.Dependences = deps
	rec.Candidates = cands
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (AnalysisRecord, error) {
	var rec AnalysisRecord
	var liveSizes string
	err := row.Scan(
		&rec.ID, &rec.Seq, &rec.ScopName, &rec.ScopHash, &rec.Scop,
		&rec.OptionsHash, &rec.Options, &rec.Status,
		&rec.ErrorCode, &rec.ErrorMessage, &rec.DCEIterations, &rec.DCERemoved,
		&liveSizes, &rec.AnalyzerVersion, &rec.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisRecord{}, err
	}
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("scan analysis: %w", err)
	}
	if rec.DCELiveSizes, err = unmarshalLiveSizes(liveSizes); err != nil {
		return AnalysisRecord{}, fmt.Errorf("scan analysis %s: %w", rec.ID, err)
	}
	return rec, nil
}
