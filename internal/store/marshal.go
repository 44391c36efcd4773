package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/polydep/internal/ir"
)

// marshalCandidates converts RAR vectors to canonical JSON TEXT for storage.
func marshalCandidates(vs [][]int64) (string, error) {
	arr := make([]any, len(vs))
	for i, v := range vs {
		row := make([]any, len(v))
		for j, x := range v {
			row[j] = x
		}
		arr[i] = row
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}
	return string(data), nil
}

// unmarshalCandidates parses candidate vectors. Integers decode straight
// into int64, so there is no float64 precision loss.
func unmarshalCandidates(data string) ([][]int64, error) {
	if data == "" || data == "[]" {
		return [][]int64{}, nil
	}
	var vs [][]int64
	if err := json.Unmarshal([]byte(data), &vs); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	return vs, nil
}

// marshalLiveSizes converts the per-iteration DCE live set sizes to JSON.
func marshalLiveSizes(sizes []int) (string, error) {
	arr := make([]any, len(sizes))
	for i, n := range sizes {
		arr[i] = int64(n)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal live sizes: %w", err)
	}
	return string(data), nil
}

// unmarshalLiveSizes parses DCE live set sizes. No sizes decode to nil.
func unmarshalLiveSizes(data string) ([]int, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var sizes []int
	if err := json.Unmarshal([]byte(data), &sizes); err != nil {
		return nil, fmt.Errorf("unmarshal live sizes: %w", err)
	}
	return sizes, nil
}

// UnmarshalScop decodes the canonical scop JSON of a record.
func UnmarshalScop(data string) (*ir.ScopSpec, error) {
	var spec ir.ScopSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return nil, fmt.Errorf("unmarshal scop: %w", err)
	}
	return &spec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
