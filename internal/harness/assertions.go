package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/polydep/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome

	// Relation is the printed relation the assertion looked at, if any.
	Relation string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Relation != "" {
		fmt.Fprintf(&buf, "\nRelation:\n  %s\n", e.Relation)
	}

	return buf.String()
}

// relationElements splits a printed relation "{ a; b }" into its elements.
func relationElements(printed string) []string {
	body := strings.TrimSpace(printed)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	elems := strings.Split(body, ";")
	for i, e := range elems {
		elems[i] = strings.TrimSpace(e)
	}
	return elems
}

func lookupRelation(result *Result, assertion Assertion) (string, error) {
	rel, ok := result.Relations[assertion.Relation]
	if !ok {
		return "", &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("relation %s to be computed", assertion.Relation),
			Actual:   fmt.Sprintf("not computed (status %s)", result.Status),
		}
	}
	return rel, nil
}

// assertRelationContains checks every listed pair is an element of the
// relation.
func assertRelationContains(result *Result, assertion Assertion) error {
	rel, err := lookupRelation(result, assertion)
	if err != nil {
		return err
	}
	elems := relationElements(rel)
	for _, p := range assertion.Pairs {
		if !slices.Contains(elems, strings.TrimSpace(p)) {
			return &AssertionError{
				Type:     AssertRelationContains,
				Expected: fmt.Sprintf("%s in %s", p, assertion.Relation),
				Actual:   "not found",
				Relation: rel,
			}
		}
	}
	return nil
}

// assertRelationSize checks the relation has exactly Count elements.
func assertRelationSize(result *Result, assertion Assertion) error {
	rel, err := lookupRelation(result, assertion)
	if err != nil {
		return err
	}
	if n := len(relationElements(rel)); n != assertion.Count {
		return &AssertionError{
			Type:     AssertRelationSize,
			Expected: fmt.Sprintf("%d elements in %s", assertion.Count, assertion.Relation),
			Actual:   fmt.Sprintf("%d elements", n),
			Relation: rel,
		}
	}
	return nil
}

// assertCandidates checks the candidate report of a reference.
func assertCandidates(result *Result, assertion Assertion) error {
	idx := slices.IndexFunc(result.Candidates, func(c store.CandidateRecord) bool {
		return c.Ref == assertion.Ref
	})
	if idx < 0 {
		return &AssertionError{
			Type:     AssertCandidates,
			Expected: fmt.Sprintf("candidate report for %s", assertion.Ref),
			Actual:   fmt.Sprintf("no report (%d reports)", len(result.Candidates)),
		}
	}
	c := result.Candidates[idx]
	if assertion.Count > 0 && len(c.Candidates) != assertion.Count {
		return &AssertionError{
			Type:     AssertCandidates,
			Expected: fmt.Sprintf("%d candidates for %s", assertion.Count, assertion.Ref),
			Actual:   fmt.Sprintf("%d candidates: %v", len(c.Candidates), c.Candidates),
		}
	}
	if assertion.Chosen != nil && c.Chosen != *assertion.Chosen {
		return &AssertionError{
			Type:     AssertCandidates,
			Expected: fmt.Sprintf("candidate %d chosen for %s", *assertion.Chosen, assertion.Ref),
			Actual:   fmt.Sprintf("candidate %d chosen", c.Chosen),
		}
	}
	return nil
}

// assertRecurrence checks a recurrence with the given path was raised.
func assertRecurrence(result *Result, assertion Assertion) error {
	for _, w := range result.Recurrences {
		if !slices.Equal(w.Path, assertion.Path) {
			continue
		}
		if assertion.Level != "" && w.Level != assertion.Level {
			return &AssertionError{
				Type:     AssertRecurrence,
				Expected: fmt.Sprintf("level %s for %v", assertion.Level, assertion.Path),
				Actual:   fmt.Sprintf("level %s", w.Level),
			}
		}
		return nil
	}
	paths := make([]string, len(result.Recurrences))
	for i, w := range result.Recurrences {
		paths[i] = strings.Join(w.Path, " → ")
	}
	return &AssertionError{
		Type:     AssertRecurrence,
		Expected: fmt.Sprintf("recurrence %s", strings.Join(assertion.Path, " → ")),
		Actual:   fmt.Sprintf("recurrences %v", paths),
		Relation: result.Relations["flow"],
	}
}

// assertErrorCode checks the analysis failed with the given code.
func assertErrorCode(result *Result, assertion Assertion) error {
	if result.ErrorCode != assertion.Code {
		actual := result.ErrorCode
		if actual == "" {
			actual = "analysis succeeded"
		}
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: assertion.Code,
			Actual:   actual,
		}
	}
	return nil
}

// assertFinalState checks the store table contains expected values.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	// Values are always bound, never interpolated
	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Several matches would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhereClause constructs a parameterized WHERE clause.
// Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
// SQLite stores booleans as 0/1.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(val)
	case string, int64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML value with a value scanned from SQLite,
// which returns integers as int64, booleans as 0/1 and text as string.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRelationContains:
			err = assertRelationContains(result, assertion)
		case AssertRelationSize:
			err = assertRelationSize(result, assertion)
		case AssertCandidates:
			err = assertCandidates(result, assertion)
		case AssertRecurrence:
			err = assertRecurrence(result, assertion)
		case AssertErrorCode:
			err = assertErrorCode(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
