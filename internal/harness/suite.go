package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SuiteEntry is the outcome of one scenario file of a suite.
type SuiteEntry struct {
	Path     string
	Scenario *Scenario // nil if the file could not be loaded
	Result   *Result   // nil if the scenario could not be run
	Err      error
}

// Name returns the scenario name, or the file name when loading failed.
func (e SuiteEntry) Name() string {
	if e.Scenario != nil {
		return e.Scenario.Name
	}
	return filepath.Base(e.Path)
}

// Pass reports whether the scenario ran and all its checks held.
func (e SuiteEntry) Pass() bool {
	return e.Err == nil && e.Result != nil && e.Result.Pass
}

// FindScenarioFiles returns the YAML files under dir, in lexical order.
// filter is a glob matched against the file name without extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Golden snapshots live next to scenarios
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// RunSuite loads and runs every scenario file under dir. A scenario that
// fails to load or run is reported in its entry; the others still run.
func RunSuite(dir, filter string) ([]SuiteEntry, error) {
	files, err := FindScenarioFiles(dir, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]SuiteEntry, 0, len(files))
	for _, path := range files {
		entry := SuiteEntry{Path: path}

		scenario, err := LoadScenario(path)
		if err != nil {
			entry.Err = fmt.Errorf("failed to load scenario: %w", err)
			entries = append(entries, entry)
			continue
		}
		entry.Scenario = scenario

		result, err := Run(scenario)
		if err != nil {
			entry.Err = fmt.Errorf("execution failed: %w", err)
			entries = append(entries, entry)
			continue
		}
		entry.Result = result
		entries = append(entries, entry)
	}
	return entries, nil
}

// GoldenPath returns the golden file of a scenario file:
// <dir>/golden/<name>.golden next to the scenario.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}
