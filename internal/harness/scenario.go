package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/ir"
)

// Scenario defines an analysis scenario: one scop, the options to analyze
// it with, and what the analysis must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scop is the scop to analyze, written inline.
	Scop *ir.ScopSpec `yaml:"scop,omitempty"`

	// ScopFile is a CUE file holding the scop, relative to the scenario
	// file. Mutually exclusive with Scop.
	ScopFile string `yaml:"scop_file,omitempty"`

	// ScopName selects a scop of ScopFile. Optional when the file holds a
	// single scop.
	ScopName string `yaml:"scop_name,omitempty"`

	Options ScenarioOptions `yaml:"options,omitempty"`

	// Expect maps relation names to their exact printed form.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Assertions are checked after Expect.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioOptions are the analysis options of a scenario.
type ScenarioOptions struct {
	LiveRangeReordering bool           `yaml:"live_range_reordering,omitempty"`
	AutoSA              bool           `yaml:"autosa,omitempty"`
	Target              string         `yaml:"target,omitempty"`
	RARTiled            bool           `yaml:"rar_tiled,omitempty"`
	RAROverrides        map[string]int `yaml:"rar_overrides,omitempty"`
	DCE                 bool           `yaml:"dce,omitempty"`
}

// AnalysisOptions converts the scenario options for the analysis.
func (o ScenarioOptions) AnalysisOptions() (deps.Options, error) {
	target, err := deps.ParseTarget(o.Target)
	if err != nil {
		return deps.Options{}, err
	}
	return deps.Options{
		LiveRangeReordering: o.LiveRangeReordering,
		AutoSA:              o.AutoSA,
		Target:              target,
		RAR:                 deps.RAROptions{Tiled: o.RARTiled, Overrides: o.RAROverrides},
	}, nil
}

// Assertion validates the analysis result or the stored analysis.
type Assertion struct {
	// Type specifies the assertion type:
	// - "relation_contains": Check pairs are elements of a relation
	// - "relation_size": Check a relation has exactly Count elements
	// - "candidates": Check the RAR candidate report of a reference
	// - "recurrence": Check a recurrence warning with Path was raised
	// - "error_code": Check the analysis failed with Code
	// - "final_state": Query table and verify expected values
	Type string `yaml:"type"`

	// Relation names the relation (relation_contains, relation_size).
	Relation string `yaml:"relation,omitempty"`

	// Pairs are printed relation elements such as "S1[0] -> S2[0]"
	// (relation_contains).
	Pairs []string `yaml:"pairs,omitempty"`

	// Count is the expected size (relation_size) or number of candidates
	// (candidates).
	Count int `yaml:"count,omitempty"`

	// Ref is the reference of a candidate report (candidates).
	Ref string `yaml:"ref,omitempty"`

	// Chosen is the expected chosen candidate index (candidates).
	Chosen *int `yaml:"chosen,omitempty"`

	// Path is the statement cycle of a recurrence (recurrence).
	Path []string `yaml:"path,omitempty"`

	// Level is the expected recurrence level, if set (recurrence).
	Level string `yaml:"level,omitempty"`

	// Code is the expected error code (error_code).
	Code string `yaml:"code,omitempty"`

	// Table is the store table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRelationContains = "relation_contains"
	AssertRelationSize     = "relation_size"
	AssertCandidates       = "candidates"
	AssertRecurrence       = "recurrence"
	AssertErrorCode        = "error_code"
	AssertFinalState       = "final_state"
)

// ScopFileNotFoundError is returned when a scenario references a CUE file
// that doesn't exist.
type ScopFileNotFoundError struct {
	Scenario     string
	ScopFile     string
	ResolvedPath string
}

func (e *ScopFileNotFoundError) Error() string {
	return fmt.Sprintf(
		"scenario %q references scop file %q which does not exist (resolved to: %s)",
		e.Scenario,
		e.ScopFile,
		e.ResolvedPath,
	)
}

// LoadScenario reads and parses a scenario YAML file.
// A scop_file is resolved relative to the scenario file and compiled.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. basePath resolves scop_file.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.ScopFile != "" {
		if err := scenario.resolveScopFile(basePath); err != nil {
			return nil, err
		}
	}
	return &scenario, nil
}

func (s *Scenario) resolveScopFile(basePath string) error {
	path := s.ScopFile
	if !filepath.IsAbs(path) && basePath != "" {
		path = filepath.Join(basePath, path)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &ScopFileNotFoundError{Scenario: s.Name, ScopFile: s.ScopFile, ResolvedPath: path}
	}

	specs, errs := compiler.CompileFile(path)
	if len(errs) > 0 {
		return fmt.Errorf("compile %s: %w", s.ScopFile, errors.Join(errs...))
	}
	switch {
	case s.ScopName != "":
		for _, spec := range specs {
			if spec.Name == s.ScopName {
				s.Scop = spec
				return nil
			}
		}
		return fmt.Errorf("scop %q not found in %s", s.ScopName, s.ScopFile)
	case len(specs) == 1:
		s.Scop = specs[0]
		return nil
	case len(specs) == 0:
		return fmt.Errorf("no scop found in %s", s.ScopFile)
	}
	return fmt.Errorf("%s holds %d scops: scop_name is required", s.ScopFile, len(specs))
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Scop == nil && s.ScopFile == "":
		return fmt.Errorf("one of scop or scop_file is required")
	case s.Scop != nil && s.ScopFile != "":
		return fmt.Errorf("scop and scop_file are mutually exclusive")
	case s.ScopFile == "" && s.ScopName != "":
		return fmt.Errorf("scop_name requires scop_file")
	}

	if _, err := s.Options.AnalysisOptions(); err != nil {
		return fmt.Errorf("options: %w", err)
	}

	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for name := range s.Expect {
		if !IsRelationName(name) {
			return fmt.Errorf("expect: unknown relation %q", name)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// IsRelationName reports whether name is a relation a scenario may refer to.
func IsRelationName(name string) bool {
	switch name {
	case "live_in", "live_out", "domain":
		return true
	}
	for _, k := range deps.Kinds {
		if name == RelationName(k.String(), false) || name == RelationName(k.String(), true) {
			return true
		}
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRelationContains:
		if !IsRelationName(a.Relation) {
			return fmt.Errorf("assertions[%d]: unknown relation %q for relation_contains", index, a.Relation)
		}
		if len(a.Pairs) == 0 {
			return fmt.Errorf("assertions[%d]: pairs list is required for relation_contains", index)
		}
	case AssertRelationSize:
		if !IsRelationName(a.Relation) {
			return fmt.Errorf("assertions[%d]: unknown relation %q for relation_size", index, a.Relation)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for relation_size", index)
		}
	case AssertCandidates:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for candidates", index)
		}
	case AssertRecurrence:
		if len(a.Path) == 0 {
			return fmt.Errorf("assertions[%d]: path is required for recurrence", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
