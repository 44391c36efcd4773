package scop

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/poly"
)

// DefaultInstanceLimit bounds the number of instances of a single statement.
const DefaultInstanceLimit = 1 << 16

// ErrTooManyInstances is wrapped by the InputError returned when a domain
// exceeds the instance limit.
var ErrTooManyInstances = errors.New("iteration domain exceeds instance limit")

// Option configures Extract.
type Option func(*extractor)

// WithInstanceLimit overrides DefaultInstanceLimit.
func WithInstanceLimit(n int) Option {
	return func(x *extractor) { x.limit = n }
}

type extractor struct {
	spec   *ir.ScopSpec
	params map[string]int64
	names  []string // parameter names, sorted
	limit  int

	domain, call                           poly.Set
	reads, mayWrites, mustWrites, kills    poly.Map
	tReads, tMayWrites, tMustWrites, tKill poly.Map
	sched                                  poly.Map
	refs                                   []Ref
	instances                              map[string]poly.Set
}

// Extract enumerates spec into a Scop.
//
// Every error is an *InputError: the description uses something that is
// not an integer affine function of the iterators and parameters, or a
// statement has more instances than the limit.
func Extract(spec *ir.ScopSpec, opts ...Option) (*Scop, error) {
	x := &extractor{
		spec:      spec,
		params:    spec.Params,
		names:     slices.Sorted(maps.Keys(spec.Params)),
		limit:     DefaultInstanceLimit,
		instances: make(map[string]poly.Set),
	}
	for _, opt := range opts {
		opt(x)
	}
	for i := range spec.Statements {
		if err := x.statement(&spec.Statements[i]); err != nil {
			return nil, err
		}
	}

	schedule, err := poly.NewSchedule(x.sched)
	if err != nil {
		return nil, &InputError{Scop: spec.Name, Err: err}
	}
	indep, err := x.independence()
	if err != nil {
		return nil, err
	}

	return &Scop{
		Name:             spec.Name,
		Context:          maps.Clone(spec.Params),
		Domain:           x.domain,
		Call:             x.call,
		Reads:            x.reads,
		MayWrites:        x.mayWrites,
		MustWrites:       x.mustWrites,
		MustKills:        x.kills,
		TaggedReads:      x.tReads,
		TaggedMayWrites:  x.tMayWrites,
		TaggedMustWrites: x.tMustWrites,
		TaggedMustKills:  x.tKill,
		Schedule:         schedule,
		Independence:     indep,
		Refs:             x.refs,
	}, nil
}

func (x *extractor) fail(stmt string, err error) error {
	return &InputError{Scop: x.spec.Name, Statement: stmt, Err: err}
}

func (x *extractor) statement(st *ir.StatementSpec) error {
	points, err := x.enumerate(st)
	if err != nil {
		return x.fail(st.Name, err)
	}
	insts := make([]poly.Tuple, len(points))
	for i, p := range points {
		insts[i] = poly.NewTuple(st.Name, p...)
	}
	dom := poly.NewSet(insts...)
	x.instances[st.Name] = dom
	if !st.IsKill() {
		x.domain = x.domain.Union(dom)
	}
	if st.Call {
		x.call = x.call.Union(dom)
	}

	vars := append(slices.Clone(x.names), st.Iterators()...)
	its := st.Iterators()

	timeFns, err := x.affines(st.Schedule, vars, its)
	if err != nil {
		return x.fail(st.Name, fmt.Errorf("schedule: %w", err))
	}
	sched, err := poly.NewAffineMap(dom, "", timeFns)
	if err != nil {
		return x.fail(st.Name, err)
	}
	x.sched = x.sched.Union(sched)

	for _, a := range st.Accesses {
		if !ir.ValidAccessKinds[a.Kind] {
			return x.fail(st.Name, fmt.Errorf("reference %s: unknown access kind %q", a.Ref, a.Kind))
		}
		fns, err := x.affines(a.Index, vars, its)
		if err != nil {
			return x.fail(st.Name, fmt.Errorf("reference %s: %w", a.Ref, err))
		}
		plain, err := poly.NewAffineMap(dom, a.Array, fns)
		if err != nil {
			return x.fail(st.Name, err)
		}
		tag := poly.NewTuple(a.Ref)
		tagged, err := poly.NewAffineMap(tagDomain(dom, tag), a.Array, fns)
		if err != nil {
			return x.fail(st.Name, err)
		}
		x.refs = append(x.refs, Ref{Name: a.Ref, Statement: st.Name, Array: a.Array, Kind: string(a.Kind)})

		switch a.Kind {
		case ir.AccessRead:
			x.reads = x.reads.Union(plain)
			x.tReads = x.tReads.Union(tagged)
		case ir.AccessMayWrite:
			x.mayWrites = x.mayWrites.Union(plain)
			x.tMayWrites = x.tMayWrites.Union(tagged)
		case ir.AccessMustWrite:
			x.mayWrites = x.mayWrites.Union(plain)
			x.mustWrites = x.mustWrites.Union(plain)
			x.tMayWrites = x.tMayWrites.Union(tagged)
			x.tMustWrites = x.tMustWrites.Union(tagged)
		case ir.AccessKill:
			x.kills = x.kills.Union(plain)
			x.tKill = x.tKill.Union(tagged)
		}
	}
	return nil
}

func tagDomain(dom poly.Set, tag poly.Tuple) poly.Set {
	ts := dom.Tuples()
	out := make([]poly.Tuple, len(ts))
	for i, t := range ts {
		out[i] = poly.WrapPair(t, tag)
	}
	return poly.NewSet(out...)
}

// affines parses expressions over vars and returns them as functions of
// the iterators only, with parameters substituted.
func (x *extractor) affines(exprs, vars, its []string) ([]poly.Affine, error) {
	out := make([]poly.Affine, len(exprs))
	for k, e := range exprs {
		a, err := ir.ParseAffine(e, vars)
		if err != nil {
			return nil, err
		}
		a = a.Substitute(x.params)
		f := poly.Affine{Coeffs: make([]int64, len(its)), Const: a.Const}
		for j, it := range its {
			f.Coeffs[j] = a.Coeff(it)
		}
		out[k] = f
	}
	return out, nil
}

// enumerate lists the integer points of the statement domain in
// lexicographic order.
func (x *extractor) enumerate(st *ir.StatementSpec) ([][]int64, error) {
	its := st.Iterators()
	type bound struct{ lo, hi ir.Affine }
	bounds := make([]bound, len(st.Domain))
	for k, b := range st.Domain {
		vars := append(slices.Clone(x.names), its[:k]...)
		lo, err := ir.ParseAffine(b.Lower, vars)
		if err != nil {
			return nil, fmt.Errorf("lower bound of %s: %w", b.Iter, err)
		}
		hi, err := ir.ParseAffine(b.Upper, vars)
		if err != nil {
			return nil, fmt.Errorf("upper bound of %s: %w", b.Iter, err)
		}
		bounds[k] = bound{lo: lo.Substitute(x.params), hi: hi.Substitute(x.params)}
	}

	var points [][]int64
	values := make(map[string]int64, len(its))
	cur := make([]int64, len(its))
	var walk func(k int) error
	walk = func(k int) error {
		if k == len(its) {
			if len(points) >= x.limit {
				return fmt.Errorf("%w (%d)", ErrTooManyInstances, x.limit)
			}
			points = append(points, slices.Clone(cur))
			return nil
		}
		lo := bounds[k].lo.Substitute(values).Const
		hi := bounds[k].hi.Substitute(values).Const
		for v := lo; v < hi; v++ {
			cur[k] = v
			values[its[k]] = v
			if err := walk(k + 1); err != nil {
				return err
			}
		}
		delete(values, its[k])
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return points, nil
}

// independence expands statement-level assertions into instance pairs,
// in both directions.
func (x *extractor) independence() (poly.Map, error) {
	var pairs []poly.Pair
	for _, d := range x.spec.Independence {
		from, ok1 := x.instances[d.From]
		to, ok2 := x.instances[d.To]
		if !ok1 || !ok2 {
			return poly.Map{}, &InputError{
				Scop: x.spec.Name,
				Err:  fmt.Errorf("independence %s <-> %s names an unknown statement", d.From, d.To),
			}
		}
		for _, a := range from.Tuples() {
			for _, b := range to.Tuples() {
				pairs = append(pairs, poly.Pair{In: a, Out: b}, poly.Pair{In: b, Out: a})
			}
		}
	}
	return poly.NewMap(pairs...), nil
}
