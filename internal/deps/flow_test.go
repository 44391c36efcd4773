package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/testutil"
)

func TestTagger_MapsTaggedInstancesToInstances(t *testing.T) {
	s := extract(t, testutil.ShiftedRead(2))
	assert.Equal(t,
		"{ [S1[0] -> r_B[]] -> S1[0]; [S1[0] -> w_C[]] -> S1[0]; [S1[1] -> r_B[]] -> S1[1]; [S1[1] -> w_C[]] -> S1[1] }",
		Tagger(s).String())
}

func TestProjectTags_Idempotent(t *testing.T) {
	_, a := analyze(t, testutil.Stencil(4), Options{LiveRangeReordering: true})
	tagged := a.TaggedDeps.Get(Order)

	once := ProjectTags(tagged)
	assert.True(t, once.IsEqual(a.Deps.Get(Order)))
	assert.True(t, ProjectTags(once).IsEqual(once))
}

func TestComputeLiveOut_SubsetOfMayWrites(t *testing.T) {
	s := extract(t, testutil.DeadStore(3))
	liveOut, err := ComputeLiveOut(s)
	require.NoError(t, err)

	assert.True(t, liveOut.IsSubset(s.MayWrites))
	assert.Equal(t, "{ S1[0]; S1[1]; S1[2]; S2[0]; S2[1]; S2[2] }", liveOut.Domain().String(),
		"T is killed after the loop")
}

func TestComputeLiveOut_MayWriteDoesNotCover(t *testing.T) {
	spec := &ir.ScopSpec{
		Name: "may",
		Statements: []ir.StatementSpec{
			{Name: "S1", Schedule: []string{"0"}, Accesses: []ir.AccessSpec{access("w1", ir.AccessMustWrite, "x")}},
			{Name: "S2", Schedule: []string{"1"}, Accesses: []ir.AccessSpec{access("w2", ir.AccessMayWrite, "x")}},
		},
	}
	s := extract(t, spec)
	liveOut, err := ComputeLiveOut(s)
	require.NoError(t, err)
	assert.Equal(t, "{ S1[] -> x[]; S2[] -> x[] }", liveOut.String())
}

func TestComputeFlowDep_LiveIn(t *testing.T) {
	s := extract(t, testutil.ShiftedRead(2))
	depFlow, liveIn, err := ComputeFlowDep(s)
	require.NoError(t, err)

	assert.True(t, depFlow.IsEmpty())
	assert.Equal(t, "{ S1[0] -> B[1]; S1[1] -> B[2] }", liveIn.String())
	assert.True(t, liveIn.IsSubset(s.Reads))
}

func TestComputeTaggedFlowDepOnly_KillsAreNotSources(t *testing.T) {
	spec := &ir.ScopSpec{
		Name:   "killed",
		Params: map[string]int64{"N": 2},
		Statements: []ir.StatementSpec{
			{
				Name: "K", Domain: loop("i", "0", "N"), Schedule: []string{"0", "i"},
				Accesses: []ir.AccessSpec{access("k_A", ir.AccessKill, "A", "i")},
			},
			{
				Name: "S", Domain: loop("i", "0", "N"), Schedule: []string{"1", "i"},
				Accesses: []ir.AccessSpec{access("r_A", ir.AccessRead, "A", "i")},
			},
		},
	}
	s := extract(t, spec)
	tagged, liveIn, err := ComputeTaggedFlowDepOnly(s)
	require.NoError(t, err)

	assert.True(t, tagged.IsEmpty(), "a kill must not become a flow source")
	assert.True(t, liveIn.IsEmpty(), "the killed value is not live-in either")
}

func TestComputeTaggedFlowDepOnly_MatchesSimpleMode(t *testing.T) {
	fixtures := []*ir.ScopSpec{
		testutil.ProducerConsumer(3),
		testutil.DeadStore(3),
		testutil.Stencil(4),
		testutil.Reduction(2, 3),
	}
	for _, spec := range fixtures {
		t.Run(spec.Name, func(t *testing.T) {
			s := extract(t, spec)
			simple, liveIn, err := ComputeFlowDep(s)
			require.NoError(t, err)
			tagged, taggedLiveIn, err := ComputeTaggedFlowDepOnly(s)
			require.NoError(t, err)

			assert.Equal(t, simple.String(), ProjectTags(tagged).String())
			assert.Equal(t, liveIn.String(), untagDomain(taggedLiveIn).String())
		})
	}
}

func TestRemoveIndependences(t *testing.T) {
	build := func(kind ir.AccessKind) *ir.ScopSpec {
		return &ir.ScopSpec{
			Name:   "indep",
			Params: map[string]int64{"N": 2},
			Statements: []ir.StatementSpec{
				{
					Name: "S1", Domain: loop("i", "0", "N"), Schedule: []string{"i", "0"},
					Accesses: []ir.AccessSpec{access("w", kind, "A", "i")},
				},
				{
					Name: "S2", Domain: loop("i", "0", "N"), Schedule: []string{"i", "1"},
					Accesses: []ir.AccessSpec{access("r", ir.AccessRead, "A", "i")},
				},
			},
			Independence: []ir.IndependenceSpec{{From: "S1", To: "S2"}},
		}
	}

	t.Run("may_write_source_removed", func(t *testing.T) {
		s := extract(t, build(ir.AccessMayWrite))
		tagged, _, err := ComputeTaggedFlowDepOnly(s)
		require.NoError(t, err)
		require.Equal(t, 2, tagged.Len())
		assert.True(t, RemoveIndependences(s, tagged).IsEmpty())
	})

	t.Run("must_write_source_kept", func(t *testing.T) {
		s := extract(t, build(ir.AccessMustWrite))
		tagged, _, err := ComputeTaggedFlowDepOnly(s)
		require.NoError(t, err)
		assert.True(t, RemoveIndependences(s, tagged).IsEqual(tagged))
	})
}

func TestComputeFalseDep_WriteAfterRead(t *testing.T) {
	spec := &ir.ScopSpec{
		Name: "war",
		Statements: []ir.StatementSpec{
			{Name: "S1", Schedule: []string{"0"}, Accesses: []ir.AccessSpec{access("r", ir.AccessRead, "x")}},
			{Name: "S2", Schedule: []string{"1"}, Accesses: []ir.AccessSpec{access("w", ir.AccessMustWrite, "x")}},
		},
	}
	s := extract(t, spec)
	f, err := ComputeFalseDep(s)
	require.NoError(t, err)
	assert.Equal(t, "{ S1[] -> S2[] }", f.String())
}

func TestComputeDependences_FalseExcludesFlowPairs(t *testing.T) {
	_, a := analyze(t, testutil.Stencil(3), Options{})
	assert.True(t, a.Deps.Get(False).Intersect(a.Deps.Get(Flow)).IsEmpty())
	assert.False(t, a.Deps.Get(Flow).IsEmpty())
}
