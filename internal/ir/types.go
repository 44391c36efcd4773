package ir

// ScopSpec describes a static control part: a set of statements nested in
// affine loops, with their array accesses and an initial schedule.
//
// It is what the front end hands to the extractor. Parameters are given
// concrete values, so every iteration domain is finite.
type ScopSpec struct {
	Name         string             `json:"name" yaml:"name"`
	Params       map[string]int64   `json:"params,omitempty" yaml:"params,omitempty"`
	Statements   []StatementSpec    `json:"statements" yaml:"statements"`
	Independence []IndependenceSpec `json:"independence,omitempty" yaml:"independence,omitempty"`
}

// StatementSpec describes one statement: its enclosing loops (outermost
// first), its schedule and its accesses.
type StatementSpec struct {
	Name     string       `json:"name" yaml:"name"`
	Domain   []LoopBound  `json:"domain,omitempty" yaml:"domain,omitempty"`
	Schedule []string     `json:"schedule" yaml:"schedule"`
	Accesses []AccessSpec `json:"accesses,omitempty" yaml:"accesses,omitempty"`
	Call     bool         `json:"call,omitempty" yaml:"call,omitempty"` // contains an opaque call
}

// Iterators returns the loop iterators of the statement, outermost first.
func (s StatementSpec) Iterators() []string {
	its := make([]string, len(s.Domain))
	for i, b := range s.Domain {
		its[i] = b.Iter
	}
	return its
}

// IsKill reports whether every access of the statement is a kill. Such
// statements only mark the end of a live range and are not part of the
// iteration domain.
func (s StatementSpec) IsKill() bool {
	if len(s.Accesses) == 0 {
		return false
	}
	for _, a := range s.Accesses {
		if a.Kind != AccessKill {
			return false
		}
	}
	return true
}

// LoopBound is a loop `for (iter = lower; iter < upper; iter++)`.
// Lower and Upper are affine in outer iterators and parameters.
type LoopBound struct {
	Iter  string `json:"iter" yaml:"iter"`
	Lower string `json:"lower" yaml:"lower"`
	Upper string `json:"upper" yaml:"upper"`
}

// AccessKind classifies a memory reference.
type AccessKind string

const (
	AccessRead      AccessKind = "read"
	AccessMayWrite  AccessKind = "may_write"
	AccessMustWrite AccessKind = "must_write"
	AccessKill      AccessKind = "kill"
)

// ValidAccessKinds defines allowed access kinds.
var ValidAccessKinds = map[AccessKind]bool{
	AccessRead:      true,
	AccessMayWrite:  true,
	AccessMustWrite: true,
	AccessKill:      true,
}

// AccessSpec is a single syntactic array reference. Ref names the reference
// and must be unique within the scop; it becomes the tag of the access.
type AccessSpec struct {
	Ref   string     `json:"ref" yaml:"ref"`
	Kind  AccessKind `json:"kind" yaml:"kind"`
	Array string     `json:"array" yaml:"array"`
	Index []string   `json:"index,omitempty" yaml:"index,omitempty"`
}

// IndependenceSpec asserts that all instances of From and To may be freely
// reordered with respect to each other.
type IndependenceSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Statement returns the statement with the given name.
func (s *ScopSpec) Statement(name string) (*StatementSpec, bool) {
	for i := range s.Statements {
		if s.Statements[i].Name == name {
			return &s.Statements[i], true
		}
	}
	return nil, false
}

// Canonical converts the spec to plain values for canonical JSON.
func (s *ScopSpec) Canonical() map[string]any {
	params := make(map[string]any, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	stmts := make([]any, len(s.Statements))
	for i, st := range s.Statements {
		stmts[i] = st.canonical()
	}
	indep := make([]any, len(s.Independence))
	for i, d := range s.Independence {
		indep[i] = map[string]any{"from": d.From, "to": d.To}
	}
	return map[string]any{
		"name":         s.Name,
		"params":       params,
		"statements":   stmts,
		"independence": indep,
	}
}

func (s StatementSpec) canonical() map[string]any {
	domain := make([]any, len(s.Domain))
	for i, b := range s.Domain {
		domain[i] = map[string]any{"iter": b.Iter, "lower": b.Lower, "upper": b.Upper}
	}
	accesses := make([]any, len(s.Accesses))
	for i, a := range s.Accesses {
		accesses[i] = map[string]any{
			"ref":   a.Ref,
			"kind":  string(a.Kind),
			"array": a.Array,
			"index": anyStrings(a.Index),
		}
	}
	return map[string]any{
		"name":     s.Name,
		"domain":   domain,
		"schedule": anyStrings(s.Schedule),
		"accesses": accesses,
		"call":     s.Call,
	}
}

func anyStrings(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
