package scop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/ir"
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/testutil"
)

func TestExtract_ProducerConsumer(t *testing.T) {
	s, err := Extract(testutil.ProducerConsumer(2))
	require.NoError(t, err)

	assert.Equal(t, "producer_consumer", s.Name)
	assert.Equal(t, "{ S1[0]; S1[1]; S2[0]; S2[1] }", s.Domain.String())
	assert.Equal(t, "{ S2[0] -> A[0]; S2[1] -> A[1] }", s.Reads.String())
	assert.Equal(t, "{ S1[0] -> A[0]; S1[1] -> A[1]; S2[0] -> A[0]; S2[1] -> A[1] }", s.MustWrites.String())
	assert.True(t, s.MustWrites.IsEqual(s.MayWrites), "must-writes are also may-writes")
	assert.True(t, s.MustKills.IsEmpty())
	assert.True(t, s.Call.IsEmpty())
	assert.Equal(t,
		"{ [S2[0] -> r_S2_A[]] -> A[0]; [S2[1] -> r_S2_A[]] -> A[1] }",
		s.TaggedReads.String())

	assert.True(t, s.Schedule.Before(poly.NewTuple("S1", 0), poly.NewTuple("S2", 0)))
	assert.True(t, s.Schedule.Before(poly.NewTuple("S2", 0), poly.NewTuple("S1", 1)))

	require.Len(t, s.Refs, 3)
	assert.Equal(t, Ref{Name: "r_S2_A", Statement: "S2", Array: "A", Kind: "read"}, s.Refs[1])
}

func TestExtract_AccessRelationsCarryBasics(t *testing.T) {
	s, err := Extract(testutil.Reduction(2, 3))
	require.NoError(t, err)

	parts := s.TaggedReads.SplitSpaces()
	require.Len(t, parts, 1)
	bs, ok := parts[0].Basics()
	require.True(t, ok)
	require.Len(t, bs, 1)
	eqs := bs[0].Equalities()
	require.Len(t, eqs, 1)
	assert.Equal(t, []int64{0, -1}, eqs[0].In)
	assert.Equal(t, []int64{1}, eqs[0].Out)
}

func TestExtract_TriangularDomain(t *testing.T) {
	spec := &ir.ScopSpec{
		Name:   "tri",
		Params: map[string]int64{"N": 3},
		Statements: []ir.StatementSpec{{
			Name: "S",
			Domain: []ir.LoopBound{
				{Iter: "i", Lower: "0", Upper: "N"},
				{Iter: "j", Lower: "i", Upper: "N"},
			},
			Schedule: []string{"i", "j"},
		}},
	}
	s, err := Extract(spec)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Domain.Len())
	assert.False(t, s.Domain.Contains(poly.NewTuple("S", 1, 0)))
	assert.True(t, s.Domain.Contains(poly.NewTuple("S", 1, 1)))
}

func TestExtract_KillStatementScheduledButNotInDomain(t *testing.T) {
	s, err := Extract(testutil.DeadStore(2))
	require.NoError(t, err)

	k := poly.NewTuple("K", 0)
	assert.False(t, s.Domain.Contains(k))
	assert.True(t, s.Schedule.Domain().Contains(k))
	assert.Equal(t, "{ K[0] -> T[0]; K[1] -> T[1] }", s.MustKills.String())
}

func TestExtract_ZeroDimensionalStatement(t *testing.T) {
	spec := &ir.ScopSpec{
		Name: "scalar",
		Statements: []ir.StatementSpec{{
			Name: "S", Schedule: []string{"0"},
			Accesses: []ir.AccessSpec{{Ref: "w", Kind: ir.AccessMustWrite, Array: "x"}},
		}},
	}
	s, err := Extract(spec)
	require.NoError(t, err)
	assert.Equal(t, "{ S[] }", s.Domain.String())
	assert.Equal(t, "{ S[] -> x[] }", s.MustWrites.String())
}

func TestExtract_Independence(t *testing.T) {
	spec := testutil.ProducerConsumer(1)
	spec.Independence = []ir.IndependenceSpec{{From: "S1", To: "S2"}}
	s, err := Extract(spec)
	require.NoError(t, err)
	assert.Equal(t, "{ S1[0] -> S2[0]; S2[0] -> S1[0] }", s.Independence.String())
}

func TestExtract_NonAffineSubscript(t *testing.T) {
	spec := testutil.ShiftedRead(4)
	spec.Statements[0].Accesses[0].Index = []string{"idx[i]"}

	_, err := Extract(spec)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	var ae *ir.AffineError
	assert.ErrorAs(t, err, &ae)
	assert.Contains(t, err.Error(), "statement S1")
}

func TestExtract_DataDependentBound(t *testing.T) {
	spec := testutil.ShiftedRead(4)
	spec.Statements[0].Domain[0].Upper = "i * i"

	_, err := Extract(spec)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestExtract_InstanceLimit(t *testing.T) {
	_, err := Extract(testutil.ShiftedRead(10), WithInstanceLimit(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyInstances)
}

func TestExtract_SharedScheduleTime(t *testing.T) {
	tests := []struct {
		name     string
		schedule []string
	}{
		{"identical", []string{"i"}},
		{"zero padded", []string{"i", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testutil.ProducerConsumer(2)
			spec.Statements[0].Schedule = []string{"i"}
			spec.Statements[1].Schedule = tt.schedule

			_, err := Extract(spec)
			require.Error(t, err)
			assert.True(t, IsInputError(err))
			assert.ErrorIs(t, err, poly.ErrSharedTime)
			assert.Contains(t, err.Error(), "S1[0] and S2[0]")
		})
	}
}

func TestExtract_UnknownIndependenceEndpoint(t *testing.T) {
	spec := testutil.ProducerConsumer(1)
	spec.Independence = []ir.IndependenceSpec{{From: "S1", To: "S9"}}
	_, err := Extract(spec)
	assert.True(t, IsInputError(err))
}

func TestScop_WithDomain(t *testing.T) {
	s, err := Extract(testutil.DeadStore(2))
	require.NoError(t, err)

	live := s.Domain.Filter(func(t poly.Tuple) bool { return t.Name() != "S3" })
	r := s.WithDomain(live)

	assert.Equal(t, "{ S1[0]; S1[1]; S2[0]; S2[1] }", r.Domain.String())
	assert.False(t, r.Schedule.Domain().Contains(poly.NewTuple("S3", 0)))
	assert.True(t, r.Schedule.Domain().Contains(poly.NewTuple("K", 0)), "kills stay scheduled")
	assert.Equal(t, s.MustKills.String(), r.MustKills.String())
	assert.NotContains(t, r.TaggedReads.String(), "S3")
	// original untouched
	assert.Equal(t, 6, s.Domain.Len())
}
