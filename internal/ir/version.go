package ir

// Version constants for the IR schema and the analyzer.
const (
	// IRVersion is the scop description schema version.
	IRVersion = "1"

	// AnalyzerVersion is the dependence analyzer version. Stored analyses
	// produced by another version are never reused.
	AnalyzerVersion = "0.1.0"
)
