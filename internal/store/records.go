package store

// Analysis status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AnalysisRecord is one stored analysis run.
//
// Scop and Options hold canonical JSON so a run can be replayed exactly.
// Failed runs carry the error code and message and have no dependences.
type AnalysisRecord struct {
	ID              string
	Seq             int64
	ScopName        string
	ScopHash        string
	Scop            string
	OptionsHash     string
	Options         string
	Status          string
	ErrorCode       string
	ErrorMessage    string
	DCEIterations   int
	DCERemoved      int
	DCELiveSizes    []int
	AnalyzerVersion string
	IRVersion       string

	Dependences []DependenceRecord
	Candidates  []CandidateRecord
}

// DependenceRecord is a relation of one kind rendered as text.
type DependenceRecord struct {
	Kind     string
	Tagged   bool
	Relation string
	Size     int
}

// CandidateRecord lists the RAR vectors offered for one read reference and
// the one that was used.
type CandidateRecord struct {
	Ref        string
	Candidates [][]int64
	Chosen     int
	Overridden bool
}
