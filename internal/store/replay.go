package store

import (
	"context"
	"fmt"
)

// GetLastSeq returns the highest seq number used in the store.
// Used for recovery to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM analyses
	`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from analyses: %w", err)
	}
	return maxSeq, nil
}

// ListScopNames returns all distinct scop names in the database.
// Results ordered alphabetically.
func (s *Store) ListScopNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scop_name
		FROM analyses
		ORDER BY scop_name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list scop names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scop name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scop names: %w", err)
	}
	return names, nil
}
