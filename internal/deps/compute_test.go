package deps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
	"github.com/roach88/polydep/internal/testutil"
)

func TestComputeDependences_ProducerConsumer(t *testing.T) {
	_, a := analyze(t, testutil.ProducerConsumer(3), Options{})

	assert.Equal(t, "{ S1[0] -> S2[0]; S1[1] -> S2[1]; S1[2] -> S2[2] }", a.Deps.Get(Flow).String())
	assert.True(t, a.Deps.Has(False))
	assert.True(t, a.Deps.Get(False).IsEmpty(), "no write follows S2")
	assert.Equal(t, "{ S2[0]; S2[1]; S2[2] }", a.LiveOut.Domain().String())
	assert.True(t, a.LiveIn.IsEmpty())

	assert.False(t, a.TaggedDeps.Has(Flow), "plain C needs no tagged flow")
	assert.False(t, a.Deps.Has(Order))
	assert.False(t, a.Deps.Has(RAR))
	assert.Equal(t, []Kind{Flow, False}, a.Deps.Kinds())
}

func TestComputeDependences_TaggedFlowForTarget(t *testing.T) {
	_, a := analyze(t, testutil.ProducerConsumer(2), Options{Target: TargetHLS})

	assert.Equal(t,
		"{ [S1[0] -> w_S1_A[]] -> [S2[0] -> r_S2_A[]]; [S1[1] -> w_S1_A[]] -> [S2[1] -> r_S2_A[]] }",
		a.TaggedDeps.Get(Flow).String())
	assert.Equal(t, "{ S1[0] -> S2[0]; S1[1] -> S2[1] }", a.Deps.Get(Flow).String())
	assert.False(t, a.Deps.Has(Forced))
}

func TestComputeDependences_ShiftedReadFallsBackToIdentity(t *testing.T) {
	_, a := analyze(t, testutil.ShiftedRead(3), Options{AutoSA: true, Target: TargetHLS})

	assert.Equal(t,
		"{ [S1[0] -> r_B[]] -> [S1[0] -> r_B[]]; [S1[1] -> r_B[]] -> [S1[1] -> r_B[]]; [S1[2] -> r_B[]] -> [S1[2] -> r_B[]] }",
		a.TaggedDeps.Get(RAR).String())
	assert.Equal(t, "{ S1[0] -> S1[0]; S1[1] -> S1[1]; S1[2] -> S1[2] }", a.Deps.Get(RAR).String())
	assert.Empty(t, a.Candidates)
}

func TestComputeDependences_ReductionReuse(t *testing.T) {
	_, a := analyze(t, testutil.Reduction(3, 2), Options{AutoSA: true, Target: TargetHLS})

	assert.Equal(t,
		"{ S1[0, 0] -> S1[1, 0]; S1[0, 1] -> S1[1, 1]; S1[1, 0] -> S1[2, 0]; S1[1, 1] -> S1[2, 1] }",
		a.Deps.Get(RAR).String())
	assert.True(t, a.Deps.Get(WAW).IsEmpty(), "every D element is written once")
	assert.Empty(t, a.Candidates, "a single candidate needs no report")
}

func TestComputeDependences_ScalarReadReportsCandidates(t *testing.T) {
	spec := testutil.Reduction(2, 2)
	spec.Statements[0].Accesses[0] = access("r_x", "read", "x")

	_, a := analyze(t, spec, Options{AutoSA: true, Target: TargetHLS})
	assert.Equal(t, "{ S1[0, 0] -> S1[1, 0]; S1[0, 1] -> S1[1, 1] }", a.Deps.Get(RAR).String())
	require.Len(t, a.Candidates, 1)
	assert.Equal(t, CandidateReport{
		Ref:        "r_x",
		Candidates: [][]int64{{1, 0}, {0, 1}},
		Chosen:     0,
	}, a.Candidates[0])

	_, a = analyze(t, spec, Options{
		AutoSA: true, Target: TargetHLS,
		RAR: RAROptions{Overrides: map[string]int{"r_x": 1}},
	})
	assert.Equal(t, "{ S1[0, 0] -> S1[0, 1]; S1[1, 0] -> S1[1, 1] }", a.Deps.Get(RAR).String())
	require.Len(t, a.Candidates, 1)
	assert.Equal(t, 1, a.Candidates[0].Chosen)
	assert.True(t, a.Candidates[0].Overridden)
}

func TestComputeDependences_AutoSAImpliesTaggedFlow(t *testing.T) {
	_, a := analyze(t, testutil.ProducerConsumer(2), Options{AutoSA: true})

	assert.True(t, a.TaggedDeps.Has(Flow))
	assert.True(t, a.Deps.Get(RAR).IsEmpty(), "the only read is connected by flow")
	assert.Equal(t,
		"{ [S1[0] -> w_S1_A[]] -> [S2[0] -> w_S2_A[]]; [S1[1] -> w_S1_A[]] -> [S2[1] -> w_S2_A[]] }",
		a.TaggedDeps.Get(WAW).String())
	assert.Equal(t, "{ S1[0] -> S2[0]; S1[1] -> S2[1] }", a.Deps.Get(WAW).String())
}

func TestComputeDependences_Reordering(t *testing.T) {
	_, a := analyze(t, testutil.Stencil(4), Options{LiveRangeReordering: true})

	assert.Equal(t, "{ S1[1] -> S2[1]; S1[2] -> S2[2]; S1[3] -> S2[3] }", a.Deps.Get(Flow).String())
	assert.Equal(t, "{ S2[1] -> S1[2]; S2[2] -> S1[3] }", a.Deps.Get(Order).String())
	assert.Equal(t,
		"{ [S2[1] -> r_S2_t[]] -> [S1[2] -> w_S1_t[]]; [S2[2] -> r_S2_t[]] -> [S1[3] -> w_S1_t[]] }",
		a.TaggedDeps.Get(Order).String())
	assert.Equal(t, "{ S1[1] -> S1[3]; S1[2] -> S1[3] }", a.Deps.Get(Forced).String())
	assert.Equal(t,
		"{ S1[1] -> S1[2]; S1[2] -> S1[3]; S2[1] -> S1[2]; S2[2] -> S1[3] }",
		a.Deps.Get(False).String())
	assert.Equal(t,
		"{ S1[1] -> A[0]; S1[1] -> A[1]; S1[2] -> A[1]; S1[2] -> A[2]; S1[3] -> A[2]; S1[3] -> A[3] }",
		a.LiveIn.String())
	assert.Equal(t, "{ S1[3] -> t[]; S2[1] -> B[1]; S2[2] -> B[2]; S2[3] -> B[3] }", a.LiveOut.String())
}

func TestComputeDependences_FalseMinusFlowKeepsUnion(t *testing.T) {
	for _, spec := range []*ir.ScopSpec{testutil.ProducerConsumer(3), testutil.Stencil(4), orderingScop()} {
		t.Run(spec.Name, func(t *testing.T) {
			s, a := analyze(t, spec, Options{})
			raw, err := ComputeFalseDep(s)
			require.NoError(t, err)

			flow := a.Deps.Get(Flow)
			assert.True(t, a.Deps.Get(False).Union(flow).IsEqual(raw.Union(flow)))
			assert.True(t, a.Deps.Get(False).Intersect(flow).IsEmpty())
		})
	}
}

// orderingScop exercises each forced and order rule once:
//
//	S0: read B        (live-in read)
//	S1: maybe A; B =  (first write of B)
//	S2: maybe A       (S1 and S2 may both provide S3)
//	S3: read A
//	S4: C =           (dead write, overwritten by S5)
//	S5: C =
func orderingScop(independence ...ir.IndependenceSpec) *ir.ScopSpec {
	return &ir.ScopSpec{
		Name: "ordering",
		Statements: []ir.StatementSpec{
			{Name: "S0", Schedule: []string{"0"}, Accesses: []ir.AccessSpec{
				access("r_S0_B", ir.AccessRead, "B")}},
			{Name: "S1", Schedule: []string{"1"}, Accesses: []ir.AccessSpec{
				access("w_S1_A", ir.AccessMayWrite, "A"),
				access("w_S1_B", ir.AccessMustWrite, "B")}},
			{Name: "S2", Schedule: []string{"2"}, Accesses: []ir.AccessSpec{
				access("w_S2_A", ir.AccessMayWrite, "A")}},
			{Name: "S3", Schedule: []string{"3"}, Accesses: []ir.AccessSpec{
				access("r_S3_A", ir.AccessRead, "A")}},
			{Name: "S4", Schedule: []string{"4"}, Accesses: []ir.AccessSpec{
				access("w_S4_C", ir.AccessMustWrite, "C")}},
			{Name: "S5", Schedule: []string{"5"}, Accesses: []ir.AccessSpec{
				access("w_S5_C", ir.AccessMustWrite, "C")}},
		},
		Independence: independence,
	}
}

func TestComputeDependences_ForcedAndOrderRules(t *testing.T) {
	_, a := analyze(t, orderingScop(), Options{LiveRangeReordering: true})

	assert.Equal(t, "{ S1[] -> S3[]; S2[] -> S3[] }", a.Deps.Get(Flow).String())

	// S0 -> S1: a live-in read stays before the write of its element.
	// S1 -> S2: may-writes feeding the same read keep their order.
	// S4 -> S5: the last write of C is the one that escapes.
	assert.Equal(t, "{ S0[] -> S1[]; S1[] -> S2[]; S4[] -> S5[] }", a.Deps.Get(Forced).String())

	// S4 starts no flow dependence, so it is an order source for S5.
	// S1 and S2 feed S3 and are not.
	assert.Equal(t, "{ S0[] -> S1[]; S4[] -> S5[] }", a.Deps.Get(Order).String())
}

func TestComputeDependences_ForcedDropsIndependentPairs(t *testing.T) {
	_, a := analyze(t, orderingScop(
		ir.IndependenceSpec{From: "S0", To: "S1"},
		ir.IndependenceSpec{From: "S4", To: "S5"},
	), Options{LiveRangeReordering: true})

	assert.Equal(t, "{ S1[] -> S2[] }", a.Deps.Get(Forced).String())
	assert.Equal(t, "{ S0[] -> S1[]; S4[] -> S5[] }", a.Deps.Get(Order).String(),
		"order dependences keep live ranges apart regardless of independence")
}

func TestComputeDependences_UnscheduledInstanceIsRelationFailure(t *testing.T) {
	sched, err := poly.NewSchedule(poly.EmptyMap())
	require.NoError(t, err)
	s := &scop.Scop{
		Name:     "broken",
		Reads:    poly.NewMap(poly.Pair{In: poly.NewTuple("S", 0), Out: poly.NewTuple("A", 0)}),
		Schedule: sched,
	}

	_, err = ComputeDependences(context.Background(), s, Options{})
	require.Error(t, err)
	assert.True(t, IsRelationFailure(err))
	assert.ErrorIs(t, err, poly.ErrUnscheduled)
	assert.Contains(t, err.Error(), "stage=flow")
}

func TestComputeDependences_MalformedTaggedAccessIsUnsupported(t *testing.T) {
	s := extract(t, testutil.ShiftedRead(2))
	s.TaggedReads = s.Reads

	_, err := ComputeDependences(context.Background(), s, Options{})
	require.Error(t, err)
	assert.True(t, IsUnsupportedInput(err))
	assert.False(t, IsRelationFailure(err))
}

func TestComputeDependences_Cancelled(t *testing.T) {
	s := extract(t, testutil.Reduction(2, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeDependences(ctx, s, Options{AutoSA: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDependences_DoesNotMutateScop(t *testing.T) {
	s := extract(t, testutil.Stencil(3))
	before := s.TaggedMayWrites.String() + s.Reads.String() + s.Domain.String()

	_, err := ComputeDependences(context.Background(), s, Options{LiveRangeReordering: true, AutoSA: true})
	require.NoError(t, err)
	assert.Equal(t, before, s.TaggedMayWrites.String()+s.Reads.String()+s.Domain.String())
}
